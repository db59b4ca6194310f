// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the timing helpers shared by callers of the
// engine client: geometric backoff, context-aware sleeps, and a retry
// loop. The engine client itself never retries; these helpers belong to
// the code that drives it.
package httputil

import (
	"context"
	"math"
	"net/http"
	"time"
)

// RetryBaseDelay is the initial delay used when a Backoff leaves Initial
// unset. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMultiplier = 2.0

// Backoff describes a delay that starts at Initial and grows by
// Multiplier on every attempt, capped at Max.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Delay returns the wait before attempt n+1, where attempt 0 is the
// first retry. A zero Max leaves the delay uncapped. A Multiplier below 1
// falls back to 2.
func (b Backoff) Delay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = RetryBaseDelay
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = defaultMultiplier
	}
	if attempt < 0 {
		attempt = 0
	}

	d := float64(initial) * math.Pow(mult, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Sleep waits for d or until ctx is done, whichever comes first. It
// returns ctx.Err() when the context ends the wait.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryableStatus reports whether an HTTP status is worth retrying: 429
// (Too Many Requests) and any 5xx.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Retry calls fn until it succeeds, returns an error that retryable
// rejects, or maxAttempts calls have been made. When maxAttempts is 0 or
// less fn runs once. The last error is returned as-is so callers can
// inspect its type. If ctx is cancelled during a backoff wait Retry
// returns ctx.Err().
func Retry(ctx context.Context, maxAttempts int, b Backoff, retryable func(error) bool, fn func(context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) || attempt == maxAttempts-1 {
			return err
		}
		if serr := Sleep(ctx, b.Delay(attempt)); serr != nil {
			return serr
		}
	}
	return err
}
