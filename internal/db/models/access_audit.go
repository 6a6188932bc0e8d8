// Package models holds the database row types of the gateway.
package models

import (
	"time"

	"github.com/lib/pq"
)

// AccessAudit is one row of the access_audit table.
type AccessAudit struct {
	ID        string         `db:"id" json:"id"`
	RequestID *string        `db:"request_id" json:"request_id,omitempty"`
	Guard     string         `db:"guard" json:"guard"`
	Method    string         `db:"method" json:"method"`
	Path      string         `db:"path" json:"path"`
	Granted   bool           `db:"granted" json:"granted"`
	Reason    string         `db:"reason" json:"reason"`
	UserName  *string        `db:"user_name" json:"user_name,omitempty"`
	Roles     pq.StringArray `db:"roles" json:"roles"`
	IPAddress *string        `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
