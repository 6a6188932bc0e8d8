// Package safego provides panic-recovering goroutine launchers for background work
// such as access audit writes.
package safego

import (
	"context"
	"log/slog"
	"time"
)

// Go launches fn in a new goroutine. A panic in fn is recovered and logged instead
// of crashing the gateway.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}

// GoWithTimeout runs fn in a recovered goroutine with a fresh context that is
// cancelled after timeout. The context is detached from any request so the work
// outlives the response that triggered it.
func GoWithTimeout(timeout time.Duration, fn func(ctx context.Context)) {
	Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		fn(ctx)
	})
}
