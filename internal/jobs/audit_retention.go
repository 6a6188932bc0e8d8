// Package jobs holds the gateway's background jobs.
//
// audit_retention.go implements AuditRetentionJob, which periodically deletes stored
// access decisions older than the configured retention window. The job is a no-op
// when retention is 0, so it is always safe to start.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/church-dashboard/church-dashboard/internal/config"
)

// AuditPruner deletes audit records created before cutoff and reports how many
// were removed. Implemented by repositories.AccessAuditRepository.
type AuditPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRetentionJob prunes the access audit table on a fixed interval.
type AuditRetentionJob struct {
	repo      AuditPruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewAuditRetentionJob creates the job. A non-positive cleanup interval defaults to 24h.
func NewAuditRetentionJob(repo AuditPruner, cfg *config.AuditConfig) *AuditRetentionJob {
	hours := cfg.CleanupIntervalHours
	if hours <= 0 {
		hours = 24
	}
	return &AuditRetentionJob{
		repo:      repo,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  time.Duration(hours) * time.Hour,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval until ctx is cancelled
// or Stop is called. It blocks; run it in its own goroutine.
func (j *AuditRetentionJob) Start(ctx context.Context) {
	if j.retention <= 0 || j.repo == nil {
		slog.Info("audit retention job: disabled (audit.retention_days=0)")
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	slog.Info("audit retention job started", "interval", j.interval, "retention", j.retention)

	j.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-j.stopChan:
			slog.Info("audit retention job stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the loop to exit. It is safe to call more than once.
func (j *AuditRetentionJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

// RunOnce deletes every record older than the retention window.
func (j *AuditRetentionJob) RunOnce(ctx context.Context) int64 {
	cutoff := j.now().Add(-j.retention)
	n, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("audit retention job: prune failed", "cutoff", cutoff, "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("audit retention job: pruned access audit records", "deleted", n, "cutoff", cutoff)
	}
	return n
}
