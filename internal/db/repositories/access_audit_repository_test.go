package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/church-dashboard/church-dashboard/internal/audit"
)

var accessAuditCols = []string{
	"id", "request_id", "guard", "method", "path", "granted",
	"reason", "user_name", "roles", "ip_address", "created_at",
}

func newAccessAuditRepo(t *testing.T) (*AccessAuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAccessAuditRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// Insert
// ---------------------------------------------------------------------------

func TestAccessAuditInsert_Success(t *testing.T) {
	repo, mock := newAccessAuditRepo(t)
	mock.ExpectExec("INSERT INTO access_audit").
		WithArgs(
			"entry-1", "req-1", "route", "GET", "/dashboard/jemaat", false,
			"role_mismatch", "Budi", sqlmock.AnyArg(), nil, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), &audit.Entry{
		ID:        "entry-1",
		Timestamp: time.Now(),
		RequestID: "req-1",
		Guard:     "route",
		Method:    "GET",
		Path:      "/dashboard/jemaat",
		Granted:   false,
		Reason:    "role_mismatch",
		UserName:  "Budi",
		Roles:     []string{"musik"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAccessAuditInsert_FillsMissingID(t *testing.T) {
	repo, mock := newAccessAuditRepo(t)
	mock.ExpectExec("INSERT INTO access_audit").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Insert(context.Background(), &audit.Entry{Guard: "pic", Method: "GET", Path: "/x", Reason: "pic"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAccessAuditInsert_DBError(t *testing.T) {
	repo, mock := newAccessAuditRepo(t)
	mock.ExpectExec("INSERT INTO access_audit").
		WillReturnError(errors.New("connection reset"))

	if err := repo.Insert(context.Background(), &audit.Entry{Guard: "route"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// ListAccessAudit
// ---------------------------------------------------------------------------

func TestListAccessAudit_NoFilters(t *testing.T) {
	repo, mock := newAccessAuditRepo(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM access_audit$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, request_id").
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows(accessAuditCols).
			AddRow("entry-1", "req-1", "route", "GET", "/dashboard", true,
				"role", "Budi", "{musik,usher}", nil, time.Now()))

	rows, total, err := repo.ListAccessAudit(context.Background(), AccessAuditFilters{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("total=%d len=%d, want 1/1", total, len(rows))
	}
	if got := rows[0].Roles; len(got) != 2 || got[0] != "musik" || got[1] != "usher" {
		t.Errorf("roles = %v", got)
	}
	if rows[0].IPAddress != nil {
		t.Errorf("ip address = %v, want nil", *rows[0].IPAddress)
	}
}

func TestListAccessAudit_Filters(t *testing.T) {
	repo, mock := newAccessAuditRepo(t)
	denied := false
	path := "/dashboard/pelayanan"
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM access_audit WHERE granted = \$1 AND path LIKE \$2`).
		WithArgs(false, "/dashboard/pelayanan%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \$3 OFFSET \$4`).
		WithArgs(false, "/dashboard/pelayanan%", 10, 5).
		WillReturnRows(sqlmock.NewRows(accessAuditCols))

	rows, total, err := repo.ListAccessAudit(context.Background(), AccessAuditFilters{Granted: &denied, Path: &path}, 10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || len(rows) != 0 {
		t.Errorf("total=%d len=%d, want 0/0", total, len(rows))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListAccessAudit_CountError(t *testing.T) {
	repo, mock := newAccessAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("boom"))

	if _, _, err := repo.ListAccessAudit(context.Background(), AccessAuditFilters{}, 10, 0); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("escapeLike = %q", got)
	}
}

// ---------------------------------------------------------------------------
// DeleteOlderThan
// ---------------------------------------------------------------------------

func TestDeleteOlderThan(t *testing.T) {
	repo, mock := newAccessAuditRepo(t)
	cutoff := time.Now().Add(-90 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM access_audit WHERE created_at").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("deleted = %d, want 7", n)
	}
}
