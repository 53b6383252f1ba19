package resilience

import (
	"context"
	"fmt"

	"github.com/erp/erpcore/internal/domain/integration"
)

// Pipeline executes calls through timeout, retry and circuit breaker policies.
// A pipeline is safe for concurrent use; each tenant gets its own instance so
// breaker state is never shared between tenants.
type Pipeline struct {
	name     string
	cfg      Config
	clock    Clock
	listener Listener
	breaker  *circuitBreaker
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithListener sets the event listener
func WithListener(l Listener) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.listener = l
		}
	}
}

// New creates a pipeline. Zero-valued durations and ratios take their defaults.
func New(name string, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:     name,
		cfg:      cfg.withDefaults(),
		clock:    SystemClock{},
		listener: nopListener{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.breaker = newCircuitBreaker(p.cfg, p.clock)
	return p
}

// Name returns the pipeline name
func (p *Pipeline) Name() string {
	return p.name
}

// Config returns the effective configuration
func (p *Pipeline) Config() Config {
	return p.cfg
}

// State returns the current breaker state
func (p *Pipeline) State() State {
	return p.Snapshot().State
}

// Snapshot returns the current breaker counters
func (p *Pipeline) Snapshot() BreakerSnapshot {
	snap, changes := p.breaker.snapshot()
	p.emitTransitions(changes)
	return snap
}

// Execute runs op through the pipeline. The error of the last attempt is
// returned unchanged, except that an attempt that exceeded its timeout yields
// an error matching integration.ErrTimeout. When the caller's ctx is done the
// pipeline stops and returns ctx.Err().
func (p *Pipeline) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gen, ok, changes := p.breaker.allow()
	p.emitTransitions(changes)
	if !ok {
		p.emit(Event{Type: EventCallRejected, Kind: integration.KindCircuitOpen, Err: integration.ErrCircuitOpen})
		return fmt.Errorf("%w: %s", integration.ErrCircuitOpen, p.name)
	}

	err := p.retry(ctx, op)
	p.emitTransitions(p.breaker.record(gen, breakerOutcome(ctx, err)))
	return err
}

func (p *Pipeline) retry(ctx context.Context, op func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		timedOut, err := withTimeout(ctx, p.cfg.Timeout, op)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if timedOut {
			p.emit(Event{Type: EventTimeout, Attempt: attempt, Kind: integration.KindTimeout, Err: err})
		}

		kind := Classify(ctx, err)
		if !kind.IsRetryable() || attempt > p.cfg.MaxRetries {
			p.emit(Event{Type: EventAttemptFailed, Attempt: attempt, Kind: kind, Err: err})
			return err
		}

		delay := p.cfg.backoff(attempt)
		p.emit(Event{Type: EventAttemptFailed, Attempt: attempt, Delay: delay, Kind: kind, Err: err})
		if sleepErr := p.clock.Sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

func (p *Pipeline) emitTransitions(changes []transition) {
	for _, c := range changes {
		p.listener.OnEvent(Event{
			Type:     EventBreakerStateChanged,
			Pipeline: p.name,
			Time:     c.at,
			From:     c.from,
			To:       c.to,
		})
	}
}

func (p *Pipeline) emit(e Event) {
	e.Pipeline = p.name
	e.Time = p.clock.Now()
	p.listener.OnEvent(e)
}
