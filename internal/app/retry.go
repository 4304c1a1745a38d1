package app

import (
	"context"
	crand "crypto/rand"
	"errors"
	"time"

	"resortadmin/internal/domain"
)

// runTx executes op, retrying only on transient storage failures
// (deadlock victim, lost connection). Conflict and validation errors
// surface immediately.
func runTx(ctx context.Context, attempts int, op func() error) error {
	var lastErr error
	for i := 0; i <= attempts; i++ {
		err := op()
		if err == nil || !errors.Is(err, domain.ErrStorageUnavailable) {
			return err
		}
		lastErr = err
		if i < attempts && !sleepCtx(ctx, backoff(i)) {
			return ctx.Err()
		}
	}
	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff returns an exponential delay (50ms, 100ms, 200ms...) with up to
// +50% jitter so concurrent retries do not re-collide.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 50 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
