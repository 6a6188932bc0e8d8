package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/church-dashboard/church-dashboard/internal/safego"
	"github.com/church-dashboard/church-dashboard/internal/telemetry"
)

// writeTimeout bounds one asynchronous store + ship cycle.
const writeTimeout = 5 * time.Second

// Store persists audit entries. Implemented by repositories.AccessAuditRepository.
type Store interface {
	Insert(ctx context.Context, entry *Entry) error
}

// Recorder writes entries asynchronously so recording never delays or alters an
// access decision. A nil *Recorder records nothing.
type Recorder struct {
	store       Store
	shipper     Shipper
	auditGrants bool
	now         func() time.Time
}

// NewRecorder creates a recorder. store and shipper may each be nil.
func NewRecorder(store Store, shipper Shipper, auditGrants bool) *Recorder {
	return &Recorder{store: store, shipper: shipper, auditGrants: auditGrants, now: time.Now}
}

// Wants reports whether an entry with this outcome would be recorded.
func (r *Recorder) Wants(granted bool) bool {
	if r == nil || (r.store == nil && r.shipper == nil) {
		return false
	}
	return !granted || r.auditGrants
}

// Record fills in the ID and timestamp and writes the entry in the background.
func (r *Recorder) Record(entry Entry) {
	if !r.Wants(entry.Granted) {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}

	safego.GoWithTimeout(writeTimeout, func(ctx context.Context) {
		r.write(ctx, &entry)
	})
}

func (r *Recorder) write(ctx context.Context, entry *Entry) {
	if r.store != nil {
		if err := r.store.Insert(ctx, entry); err != nil {
			telemetry.AuditShipErrorsTotal.Inc()
			slog.Error("failed to persist access audit entry", "error", err, "path", entry.Path)
		}
	}
	if r.shipper != nil {
		if err := r.shipper.Ship(ctx, entry); err != nil {
			telemetry.AuditShipErrorsTotal.Inc()
			slog.Error("failed to ship access audit entry", "error", err, "path", entry.Path)
		}
	}
}
