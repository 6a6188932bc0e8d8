// access_audit_repository.go implements AccessAuditRepository, persisting guard
// decisions to the access_audit table and querying them for the admin audit view.
package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/church-dashboard/church-dashboard/internal/audit"
	"github.com/church-dashboard/church-dashboard/internal/db/models"
)

// AccessAuditRepository handles access_audit database operations
type AccessAuditRepository struct {
	db *sqlx.DB
}

// NewAccessAuditRepository creates a new AccessAuditRepository
func NewAccessAuditRepository(db *sqlx.DB) *AccessAuditRepository {
	return &AccessAuditRepository{db: db}
}

// AccessAuditFilters narrows ListAccessAudit. Nil fields are ignored.
type AccessAuditFilters struct {
	Granted  *bool
	Guard    *string
	Path     *string // prefix match
	UserName *string
	Since    *time.Time
	Until    *time.Time
}

// Insert implements audit.Store.
func (r *AccessAuditRepository) Insert(ctx context.Context, e *audit.Entry) error {
	row := &models.AccessAudit{
		ID:        e.ID,
		RequestID: nullable(e.RequestID),
		Guard:     e.Guard,
		Method:    e.Method,
		Path:      e.Path,
		Granted:   e.Granted,
		Reason:    e.Reason,
		UserName:  nullable(e.UserName),
		Roles:     e.Roles,
		IPAddress: nullable(e.IPAddress),
		CreatedAt: e.Timestamp,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.Roles == nil {
		row.Roles = []string{}
	}

	query := `
		INSERT INTO access_audit (id, request_id, guard, method, path, granted, reason, user_name, roles, ip_address, created_at)
		VALUES (:id, :request_id, :guard, :method, :path, :granted, :reason, :user_name, :roles, :ip_address, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert access audit: %w", err)
	}
	return nil
}

// ListAccessAudit returns matching rows, newest first, and the total match count.
func (r *AccessAuditRepository) ListAccessAudit(ctx context.Context, f AccessAuditFilters, limit, offset int) ([]models.AccessAudit, int, error) {
	where, args := f.clauses()

	var total int
	countQuery := `SELECT COUNT(*) FROM access_audit` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count access audit: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, request_id, guard, method, path, granted, reason, user_name, roles, ip_address, created_at
		FROM access_audit%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	rows := []models.AccessAudit{}
	if err := r.db.SelectContext(ctx, &rows, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list access audit: %w", err)
	}
	return rows, total, nil
}

// DeleteOlderThan removes rows created before cutoff and returns how many were removed.
func (r *AccessAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_audit WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune access audit: %w", err)
	}
	return res.RowsAffected()
}

func (f AccessAuditFilters) clauses() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Granted != nil {
		add("granted = $%d", *f.Granted)
	}
	if f.Guard != nil {
		add("guard = $%d", *f.Guard)
	}
	if f.Path != nil {
		add("path LIKE $%d", escapeLike(*f.Path)+"%")
	}
	if f.UserName != nil {
		add("user_name = $%d", *f.UserName)
	}
	if f.Since != nil {
		add("created_at >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("created_at < $%d", *f.Until)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
