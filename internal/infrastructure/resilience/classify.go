package resilience

import (
	"context"

	"github.com/erp/erpcore/internal/domain/integration"
)

// Classify returns the kind of err in the context of the caller's ctx.
// A cancellation the caller did not request (the backend or a transport
// aborted the call) is transient. When the caller's own context is done the
// result is always KindCanceled.
func Classify(ctx context.Context, err error) integration.ErrorKind {
	if err == nil {
		return ""
	}
	if ctx.Err() != nil {
		return integration.KindCanceled
	}
	kind := integration.KindOf(err)
	if kind == integration.KindCanceled {
		return integration.KindTransient
	}
	return kind
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	outcomeIgnored
)

// breakerOutcome maps a pipeline result to what the breaker records.
// Validation and unknown faults reached the backend and count as throughput.
func breakerOutcome(ctx context.Context, err error) outcome {
	if err == nil {
		return outcomeSuccess
	}
	kind := Classify(ctx, err)
	switch {
	case kind == integration.KindCanceled:
		return outcomeIgnored
	case kind.CountsTowardBreaker():
		return outcomeFailure
	default:
		return outcomeSuccess
	}
}
