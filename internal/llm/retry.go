package llm

import (
	"math/rand/v2"
	"time"

	"github.com/draftwise/draftwise-api/internal/models"
)

// RetryPolicy decides retry eligibility and delay after a classified
// failure, and whether an exhausted failure degrades to a fallback
// result instead of an error.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterMax   time.Duration
}

// DefaultRetryPolicy returns the gateway defaults: 3 attempts,
// exponential backoff from 1s capped at 10s, up to 1s of jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		JitterMax:   time.Second,
	}
}

// ShouldRetry reports whether a failure of the given category warrants
// another attempt. Only transient categories are retryable, and never
// once the attempt budget is spent.
func (p RetryPolicy) ShouldRetry(category Category, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	switch category {
	case CategoryAPI, CategoryTimeout, CategoryNetwork:
		return true
	default:
		return false
	}
}

// Delay returns the backoff before retry number attempt (0-based):
// min(base * 2^attempt, max) plus random jitter to avoid synchronized
// retry storms across concurrently-failing users.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.JitterMax > 0 {
		d += time.Duration(rand.Int64N(int64(p.JitterMax)))
	}
	return d
}

// ShouldFallback reports whether an exhausted failure should produce the
// canonical empty result instead of a surfaced error. Parse failures
// always degrade; otherwise only severe failures do.
func (p RetryPolicy) ShouldFallback(category Category, severity models.ReportSeverity) bool {
	if category == CategoryParse {
		return true
	}
	return severity == models.ReportSeverityHigh || severity == models.ReportSeverityCritical
}

// MaxElapsed returns the worst-case total backoff the policy can add,
// used by callers sizing their overall deadline.
func (p RetryPolicy) MaxElapsed() time.Duration {
	var total time.Duration
	for i := 0; i < p.MaxAttempts; i++ {
		d := p.BaseDelay
		for j := 0; j < i && d < p.MaxDelay; j++ {
			d *= 2
		}
		if d > p.MaxDelay {
			d = p.MaxDelay
		}
		total += d + p.JitterMax
	}
	return total
}
