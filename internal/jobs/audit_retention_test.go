package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/church-dashboard/church-dashboard/internal/config"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakePruner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

func (f *fakePruner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestNewAuditRetentionJob_Interval(t *testing.T) {
	tests := []struct {
		hours int
		want  time.Duration
	}{
		{0, 24 * time.Hour},
		{-3, 24 * time.Hour},
		{6, 6 * time.Hour},
	}
	for _, tt := range tests {
		j := NewAuditRetentionJob(&fakePruner{}, &config.AuditConfig{RetentionDays: 30, CleanupIntervalHours: tt.hours})
		assert.Equal(t, tt.want, j.interval)
		assert.Equal(t, 30*24*time.Hour, j.retention)
	}
}

func TestAuditRetentionJob_RunOnceUsesCutoff(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	p := &fakePruner{deleted: 7}
	j := NewAuditRetentionJob(p, &config.AuditConfig{RetentionDays: 30})
	j.now = func() time.Time { return now }

	assert.Equal(t, int64(7), j.RunOnce(context.Background()))
	require.Len(t, p.cutoffs, 1)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), p.cutoffs[0])
}

func TestAuditRetentionJob_RunOnceError(t *testing.T) {
	p := &fakePruner{deleted: 3, err: errors.New("db down")}
	j := NewAuditRetentionJob(p, &config.AuditConfig{RetentionDays: 1})
	assert.Zero(t, j.RunOnce(context.Background()))
}

func TestAuditRetentionJob_DisabledReturnsImmediately(t *testing.T) {
	p := &fakePruner{}
	j := NewAuditRetentionJob(p, &config.AuditConfig{RetentionDays: 0})

	done := make(chan struct{})
	go func() {
		j.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return for a disabled job")
	}
	assert.Zero(t, p.calls())
}

func TestAuditRetentionJob_StartAndStop(t *testing.T) {
	p := &fakePruner{}
	j := NewAuditRetentionJob(p, &config.AuditConfig{RetentionDays: 1})

	done := make(chan struct{})
	go func() {
		j.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return p.calls() == 1 }, 2*time.Second, 10*time.Millisecond)
	j.Stop()
	j.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestAuditRetentionJob_ContextCancel(t *testing.T) {
	p := &fakePruner{}
	j := NewAuditRetentionJob(p, &config.AuditConfig{RetentionDays: 1})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return p.calls() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
