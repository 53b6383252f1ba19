package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/erpcore/internal/domain/integration"
)

var errAttemptDeadline = errors.New("resilience: attempt deadline elapsed")

// CodeAttemptTimeout is the error code of an attempt that exceeded its timeout
const CodeAttemptTimeout = "ATTEMPT_TIMEOUT"

// withTimeout runs one attempt under its own deadline. The attempt is
// cooperative: it is expected to observe ctx and return. If it returns an
// error after the attempt deadline (and not the caller's) fired, the error is
// reported as integration.ErrTimeout.
func withTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) (timedOut bool, err error) {
	attemptCtx, cancel := context.WithTimeoutCause(ctx, d, errAttemptDeadline)
	defer cancel()

	err = op(attemptCtx)
	if err == nil {
		return false, nil
	}
	if ctx.Err() == nil && errors.Is(context.Cause(attemptCtx), errAttemptDeadline) {
		return true, &integration.Error{
			Kind:    integration.KindTimeout,
			Code:    CodeAttemptTimeout,
			Message: fmt.Sprintf("attempt exceeded %s", d),
			Err:     fmt.Errorf("%w: %w", integration.ErrTimeout, err),
		}
	}
	return false, err
}
