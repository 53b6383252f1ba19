package resilience

import (
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed means calls flow normally
	StateClosed State = iota
	// StateOpen means calls are rejected without reaching the backend
	StateOpen
	// StateHalfOpen means a single trial call is admitted
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// Rolling window
// ---------------------------------------------------------------------------

type bucket struct {
	epoch     int64
	valid     bool
	successes int
	failures  int
}

// rollingWindow counts outcomes in fixed-width buckets covering the sampling window
type rollingWindow struct {
	width   time.Duration
	buckets []bucket
}

func newRollingWindow(window time.Duration, n int) *rollingWindow {
	width := window / time.Duration(n)
	if width <= 0 {
		width = time.Nanosecond
	}
	return &rollingWindow{width: width, buckets: make([]bucket, n)}
}

func (w *rollingWindow) epoch(now time.Time) int64 {
	return now.UnixNano() / int64(w.width)
}

func (w *rollingWindow) record(now time.Time, failure bool) {
	e := w.epoch(now)
	idx := e % int64(len(w.buckets))
	if idx < 0 {
		idx += int64(len(w.buckets))
	}
	b := &w.buckets[idx]
	if !b.valid || b.epoch != e {
		*b = bucket{epoch: e, valid: true}
	}
	if failure {
		b.failures++
	} else {
		b.successes++
	}
}

func (w *rollingWindow) totals(now time.Time) (total, failures int) {
	e := w.epoch(now)
	oldest := e - int64(len(w.buckets))
	for _, b := range w.buckets {
		if !b.valid || b.epoch <= oldest || b.epoch > e {
			continue
		}
		total += b.successes + b.failures
		failures += b.failures
	}
	return total, failures
}

func (w *rollingWindow) reset() {
	clear(w.buckets)
}

// ---------------------------------------------------------------------------
// Breaker
// ---------------------------------------------------------------------------

// BreakerSnapshot is a point-in-time view of a breaker
type BreakerSnapshot struct {
	State    State
	Total    int
	Failures int
	OpenedAt time.Time
}

type circuitBreaker struct {
	cfg   Config
	clock Clock

	mu         sync.Mutex
	state      State
	window     *rollingWindow
	openedAt   time.Time
	trial      bool
	generation uint64
}

func newCircuitBreaker(cfg Config, clock Clock) *circuitBreaker {
	return &circuitBreaker{
		cfg:    cfg,
		clock:  clock,
		state:  StateClosed,
		window: newRollingWindow(cfg.SamplingWindow, cfg.WindowBuckets),
	}
}

// transition is a state change to report once the lock is released
type transition struct {
	from, to State
	at       time.Time
}

// allow admits or rejects a call. The returned generation ties the later
// record call to the state the call was admitted in.
func (cb *circuitBreaker) allow() (gen uint64, ok bool, changes []transition) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.clock.Now()
	changes = cb.refreshLocked(now, changes)

	switch cb.state {
	case StateOpen:
		return 0, false, changes
	case StateHalfOpen:
		if cb.trial {
			return 0, false, changes
		}
		cb.trial = true
	}
	return cb.generation, true, changes
}

func (cb *circuitBreaker) record(gen uint64, o outcome) []transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if gen != cb.generation {
		return nil
	}
	now := cb.clock.Now()

	switch cb.state {
	case StateClosed:
		if o == outcomeIgnored {
			return nil
		}
		cb.window.record(now, o == outcomeFailure)
		if o != outcomeFailure {
			return nil
		}
		total, failures := cb.window.totals(now)
		if total >= cb.cfg.MinimumThroughput && cb.tripped(total, failures) {
			return cb.transitionLocked(StateOpen, now, nil)
		}

	case StateHalfOpen:
		cb.trial = false
		switch o {
		case outcomeSuccess:
			return cb.transitionLocked(StateClosed, now, nil)
		case outcomeFailure:
			return cb.transitionLocked(StateOpen, now, nil)
		}
	}
	return nil
}

// tripped reports whether the failure ratio exceeds the threshold. A threshold
// of 1 trips only when every call in the window failed.
func (cb *circuitBreaker) tripped(total, failures int) bool {
	if cb.cfg.FailureRatio >= 1 {
		return failures == total
	}
	return float64(failures)/float64(total) > cb.cfg.FailureRatio
}

func (cb *circuitBreaker) refreshLocked(now time.Time, changes []transition) []transition {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.cfg.BreakDuration {
		return cb.transitionLocked(StateHalfOpen, now, changes)
	}
	return changes
}

func (cb *circuitBreaker) transitionLocked(to State, now time.Time, changes []transition) []transition {
	from := cb.state
	cb.state = to
	cb.generation++
	cb.trial = false
	cb.window.reset()
	if to == StateOpen {
		cb.openedAt = now
	}
	return append(changes, transition{from: from, to: to, at: now})
}

func (cb *circuitBreaker) snapshot() (BreakerSnapshot, []transition) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.clock.Now()
	changes := cb.refreshLocked(now, nil)
	total, failures := cb.window.totals(now)
	return BreakerSnapshot{
		State:    cb.state,
		Total:    total,
		Failures: failures,
		OpenedAt: cb.openedAt,
	}, changes
}
