package resilience

import (
	"math"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Policy governs how model and queue calls are retried and when their
// per-operation breaker opens. Zero fields take DefaultPolicy values; the
// breaker stays off unless Breaker.Enabled is set.
type Policy struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

type RetryPolicy struct {
	// Attempts includes the first call; 1 disables retrying.
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
	Multiplier float64
}

type BreakerPolicy struct {
	Enabled       bool
	MinRequests   uint32
	FailureRatio  float64
	OpenFor       time.Duration
	HalfOpenCalls uint32
}

func DefaultPolicy() Policy {
	return Policy{
		Retry: RetryPolicy{
			Attempts:   1,
			Backoff:    100 * time.Millisecond,
			MaxBackoff: 400 * time.Millisecond,
			Multiplier: 2,
		},
		Breaker: BreakerPolicy{
			Enabled:       true,
			MinRequests:   10,
			FailureRatio:  0.5,
			OpenFor:       30 * time.Second,
			HalfOpenCalls: 2,
		},
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()

	r := &p.Retry
	if r.Attempts <= 0 {
		r.Attempts = def.Retry.Attempts
	}
	if r.Backoff <= 0 {
		r.Backoff = def.Retry.Backoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = def.Retry.MaxBackoff
	}
	r.MaxBackoff = max(r.MaxBackoff, r.Backoff)
	if r.Multiplier < 1 {
		r.Multiplier = def.Retry.Multiplier
	}

	b := &p.Breaker
	if b.MinRequests == 0 {
		b.MinRequests = def.Breaker.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.Breaker.FailureRatio
	}
	if b.OpenFor <= 0 {
		b.OpenFor = def.Breaker.OpenFor
	}
	if b.HalfOpenCalls == 0 {
		b.HalfOpenCalls = def.Breaker.HalfOpenCalls
	}
	return p
}

// delay is the pause before retry n (1-based), growing geometrically up to
// MaxBackoff.
func (r RetryPolicy) delay(n int) time.Duration {
	d := float64(r.Backoff) * math.Pow(r.Multiplier, float64(n-1))
	if d >= float64(r.MaxBackoff) {
		return r.MaxBackoff
	}
	return time.Duration(d)
}

func (b BreakerPolicy) trips(counts gobreaker.Counts) bool {
	if counts.Requests < b.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= b.FailureRatio
}
