package erp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/erp/erpcore/internal/domain/integration"
)

// HeaderRetryAfter is the retry-after header (seconds or HTTP date)
const HeaderRetryAfter = "Retry-After"

// maxRetryAfter caps a backend-requested pause
const maxRetryAfter = 5 * time.Minute

// RateLimiter throttles requests to one tenant's backend. It combines a
// proactive token bucket with the reactive pause a backend requests through
// Retry-After on 429/503 responses.
type RateLimiter struct {
	bucket *rate.Limiter
	now    func() time.Time

	mu          sync.Mutex
	pausedUntil time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst. A non-positive rps disables proactive throttling.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		bucket: rate.NewLimiter(limit, burst),
		now:    time.Now,
	}
}

// Wait blocks until a request may be sent. When the backend asked for a pause
// that outlasts the context deadline, Wait fails at once with a transient
// rate-limit error instead of sleeping into the deadline.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	until := r.pausedUntil
	r.mu.Unlock()

	if wait := until.Sub(r.now()); wait > 0 {
		if deadline, ok := ctx.Deadline(); ok && deadline.Before(until) {
			return integration.NewTransientError(integration.CodeRateLimited,
				fmt.Sprintf("backend requested a pause of %s", wait.Round(time.Millisecond)))
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := r.bucket.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// the bucket refuses waits that would exceed the deadline
		return integration.NewTransientError(integration.CodeRateLimited, err.Error())
	}
	return nil
}

// Pause stops requests for d. Overlapping pauses keep the later end.
func (r *RateLimiter) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	until := r.now().Add(d)

	r.mu.Lock()
	defer r.mu.Unlock()
	if until.After(r.pausedUntil) {
		r.pausedUntil = until
	}
}

// PausedUntil returns the end of the current backend-requested pause
func (r *RateLimiter) PausedUntil() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pausedUntil
}

// UpdateFromResponse applies the Retry-After header of a throttling response
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return
	}
	if d, ok := parseRetryAfter(resp.Header.Get(HeaderRetryAfter), r.now()); ok {
		r.Pause(d)
	}
}

// parseRetryAfter parses a Retry-After value given in seconds or as an HTTP date
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
