package backend

import (
	"context"
	"strings"
	"time"
)

// transientPatterns are the stderr/response substrings that classify a
// backend failure as retriable. Order doesn't matter; matching is
// case-insensitive substring search, not a regex.
var transientPatterns = []string{
	"503",
	"overload",
	"over capacity",
	"too many requests",
	"429",
	"rate limit",
	"temporarily unavailable",
	"service unavailable",
	"connection reset",
	"connection refused",
}

// IsTransient reports whether msg (typically the first line of stderr,
// or an HTTP error body) matches one of the known transient-failure
// patterns.
func IsTransient(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// RetryPolicy implements the exponential backoff schedule shared by
// both adapter variants: base 1s, factor 2, up to maxRetries attempts.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Factor     float64
}

// DefaultRetryPolicy backs off from a 1 s base, doubling per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Base: time.Second, Factor: 2}
}

// Delay returns the sleep duration before retry attempt (1-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Factor)
	}
	return d
}

// Sleep waits for Delay(attempt) or until ctx is done, whichever comes
// first, returning ctx.Err() if cancelled.
func (p RetryPolicy) Sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.Delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
