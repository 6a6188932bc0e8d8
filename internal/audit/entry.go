// Package audit records access decisions made by the dashboard guards.
//
// Audit records are kept apart from application logs: they are consumed by church
// administrators reviewing who tried to open what, and may be kept far longer than
// debug output. Every denial is recorded; grants are recorded only when configured.
// Records go to an optional Store (the Postgres access_audit table) and to any
// number of Shippers (JSON lines file, webhook).
package audit

import (
	"time"
)

// Entry is one access decision.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Guard     string    `json:"guard"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Granted   bool      `json:"granted"`
	Reason    string    `json:"reason"`
	UserName  string    `json:"user_name,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
}

// Outcome returns "granted" or "denied".
func (e *Entry) Outcome() string {
	if e.Granted {
		return "granted"
	}
	return "denied"
}
