package service

import (
	"context"
	"math/rand"
	"time"
)

// backoffDelay grows exponentially with the attempt number and adds up to
// one base interval of jitter so colliding checkouts don't retry in
// lockstep. attempt is 1-based (the first retry waits about one base).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	return delay + jitter
}

// sleepWithContext waits out the backoff delay unless the caller gives up
// first. An abandoned attempt has no persisted effect, so cancelling here
// is always safe.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
