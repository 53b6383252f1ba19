package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// backoff returns the delay before retry n (1-based): BaseDelay doubled per
// retry, capped at MaxDelay, plus up to 25% jitter when enabled.
func (c Config) backoff(n int) time.Duration {
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(2, float64(n-1)))
	if delay > c.MaxDelay || delay <= 0 {
		delay = c.MaxDelay
	}
	if c.Jitter && delay/4 > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// Attempts returns the maximum number of calls one pipeline execution makes
func (c Config) Attempts() int {
	return c.withDefaults().MaxRetries + 1
}
