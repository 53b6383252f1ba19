package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Default policy values
const (
	DefaultTimeout           = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultBaseDelay         = 200 * time.Millisecond
	DefaultMaxDelay          = 30 * time.Second
	DefaultSamplingWindow    = 30 * time.Second
	DefaultWindowBuckets     = 10
	DefaultMinimumThroughput = 10
	DefaultFailureRatio      = 0.5
	DefaultBreakDuration     = 60 * time.Second
)

// Config configures one pipeline
type Config struct {
	// Timeout bounds each individual attempt
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Zero disables retrying.
	MaxRetries int
	// BaseDelay is the delay before the first retry; it doubles per retry
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay before jitter
	MaxDelay time.Duration
	// Jitter adds up to 25% random delay on top of the backoff
	Jitter bool

	// SamplingWindow is the rolling window the breaker evaluates
	SamplingWindow time.Duration
	// WindowBuckets is the number of buckets the window is split into
	WindowBuckets int
	// MinimumThroughput is the number of calls in the window before the breaker may open
	MinimumThroughput int
	// FailureRatio opens the breaker when failures/total exceeds it
	FailureRatio float64
	// BreakDuration is how long the breaker stays open before a trial call
	BreakDuration time.Duration
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		Timeout:           DefaultTimeout,
		MaxRetries:        DefaultMaxRetries,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		Jitter:            true,
		SamplingWindow:    DefaultSamplingWindow,
		WindowBuckets:     DefaultWindowBuckets,
		MinimumThroughput: DefaultMinimumThroughput,
		FailureRatio:      DefaultFailureRatio,
		BreakDuration:     DefaultBreakDuration,
	}
}

// withDefaults fills unset fields. MaxRetries is left alone since zero is meaningful.
func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.SamplingWindow <= 0 {
		c.SamplingWindow = DefaultSamplingWindow
	}
	if c.WindowBuckets <= 0 {
		c.WindowBuckets = DefaultWindowBuckets
	}
	if c.MinimumThroughput <= 0 {
		c.MinimumThroughput = DefaultMinimumThroughput
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = DefaultFailureRatio
	}
	if c.BreakDuration <= 0 {
		c.BreakDuration = DefaultBreakDuration
	}
	return c
}

// Validate reports configuration values that withDefaults would silently replace
func (c Config) Validate() error {
	var errs []error
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries))
	}
	if c.FailureRatio < 0 || c.FailureRatio > 1 {
		errs = append(errs, fmt.Errorf("failure ratio must be in (0, 1], got %v", c.FailureRatio))
	}
	if c.MinimumThroughput < 0 {
		errs = append(errs, fmt.Errorf("minimum throughput must not be negative, got %d", c.MinimumThroughput))
	}
	if c.BreakDuration < 0 {
		errs = append(errs, fmt.Errorf("break duration must not be negative, got %s", c.BreakDuration))
	}
	return errors.Join(errs...)
}
