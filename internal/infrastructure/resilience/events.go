package resilience

import (
	"time"

	"github.com/erp/erpcore/internal/domain/integration"
)

// EventType identifies a pipeline event
type EventType string

const (
	// EventAttemptFailed is emitted for every failed attempt. Delay is set when a retry follows.
	EventAttemptFailed EventType = "attempt_failed"
	// EventTimeout is emitted when an attempt exceeds its timeout
	EventTimeout EventType = "timeout"
	// EventBreakerStateChanged is emitted on every breaker transition
	EventBreakerStateChanged EventType = "breaker_state_changed"
	// EventCallRejected is emitted when the open breaker rejects a call
	EventCallRejected EventType = "call_rejected"
)

// Event describes something that happened inside a pipeline
type Event struct {
	Type EventType
	// Pipeline is the pipeline name, the tenant key for actor pipelines
	Pipeline string
	Time     time.Time

	// Attempt is 1-based (attempt events only)
	Attempt int
	// Delay is the backoff before the next attempt, zero if none follows
	Delay time.Duration
	Err   error
	Kind  integration.ErrorKind

	// From and To are set for breaker transitions
	From State
	To   State
}

// WillRetry returns true if another attempt follows this failed attempt
func (e Event) WillRetry() bool {
	return e.Type == EventAttemptFailed && e.Delay > 0
}

// Listener observes pipeline events. Listeners must not block and cannot
// affect the outcome of the call.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function into a Listener
type ListenerFunc func(Event)

// OnEvent implements Listener
func (f ListenerFunc) OnEvent(e Event) {
	f(e)
}

type multiListener []Listener

func (m multiListener) OnEvent(e Event) {
	for _, l := range m {
		l.OnEvent(e)
	}
}

// Multi fans events out to every non-nil listener in order
func Multi(listeners ...Listener) Listener {
	out := make(multiListener, 0, len(listeners))
	for _, l := range listeners {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

type nopListener struct{}

func (nopListener) OnEvent(Event) {}
