package resilience

import "time"

// Config tunes retries and the per-operation circuit breaker shared by the
// model server, vector index and queue clients.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	// RetryAfterCap bounds how long a server-sent Retry-After may delay the
	// next attempt.
	RetryAfterCap time.Duration
	// AttemptTimeout bounds a single attempt; zero leaves only the caller's deadline.
	AttemptTimeout time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	// Observer, when set, is told about every breaker transition.
	Observer StateObserver
}

// StateObserver receives circuit breaker transitions, e.g. to export them
// as metrics.
type StateObserver interface {
	BreakerStateChanged(operation, from, to string)
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,
		RetryAfterCap:       2 * time.Second,
		AttemptTimeout:      30 * time.Second,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func positive[T int | uint32 | float64 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c

	out.RetryMaxAttempts = positive(c.RetryMaxAttempts, def.RetryMaxAttempts)
	out.RetryInitialBackoff = positive(c.RetryInitialBackoff, def.RetryInitialBackoff)
	out.RetryMaxBackoff = max(positive(c.RetryMaxBackoff, def.RetryMaxBackoff), out.RetryInitialBackoff)
	out.RetryAfterCap = positive(c.RetryAfterCap, def.RetryAfterCap)
	out.AttemptTimeout = max(c.AttemptTimeout, 0)
	if c.RetryMultiplier < 1 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	out.BreakerMinRequests = positive(c.BreakerMinRequests, def.BreakerMinRequests)
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	out.BreakerOpenTimeout = positive(c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	out.BreakerHalfOpenMaxCalls = positive(c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	return out
}

// retryDelay is the wait before attempt+1. Backoff grows geometrically up to
// RetryMaxBackoff with equal jitter, and a server hint may stretch it up to
// RetryAfterCap.
func (c Config) retryDelay(attempt int, hint time.Duration, jitter func(time.Duration) time.Duration) time.Duration {
	wait := c.RetryInitialBackoff
	for i := 1; i < attempt && wait < c.RetryMaxBackoff; i++ {
		wait = time.Duration(float64(wait) * c.RetryMultiplier)
	}
	wait = min(wait, c.RetryMaxBackoff)
	if half := wait / 2; half > 0 && jitter != nil {
		wait = half + jitter(half)
	}
	if hint > wait {
		wait = min(hint, c.RetryAfterCap)
	}
	return wait
}
