package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ---------------------------------------------------------------------------
// Integration Errors
// ---------------------------------------------------------------------------

var (
	// Tenant errors
	ErrInvalidTenantID = errors.New("integration: invalid tenant ID")
	ErrTenantMismatch  = errors.New("integration: operation tenant does not match actor tenant")

	// Provider errors
	ErrUnknownProviderType = errors.New("integration: unknown ERP provider type")
	ErrProviderNotReady    = errors.New("integration: provider not initialized")
	ErrProviderClosed      = errors.New("integration: provider closed")
	ErrCapabilityMissing   = errors.New("integration: operation not supported by provider")

	// Resilience errors
	ErrTimeout     = errors.New("integration: ERP call timed out")
	ErrCircuitOpen = errors.New("integration: circuit breaker is open")

	// Actor errors
	ErrActorNotInitialized = errors.New("integration: actor not initialized")
	ErrActorDisposed       = errors.New("integration: actor disposed")
	ErrPoolClosed          = errors.New("integration: actor pool closed")
	ErrOperationConsumed   = errors.New("integration: operation already consumed")
	ErrOperationNotRun     = errors.New("integration: operation has not completed")

	// Request errors
	ErrInvalidRequest   = errors.New("integration: invalid request")
	ErrInvalidPageToken = errors.New("integration: invalid continuation token")
	ErrInvalidWatermark = errors.New("integration: invalid watermark")
	ErrBatchTooLarge    = errors.New("integration: batch exceeds provider limit")
)

// ---------------------------------------------------------------------------
// ErrorKind classifies faults for the resilience layer
// ---------------------------------------------------------------------------

// ErrorKind classifies a failure for retry and circuit breaker accounting
type ErrorKind string

const (
	// KindUnknown is an unclassified fault. It is neither retried nor counted by the breaker.
	KindUnknown ErrorKind = "UNKNOWN"
	// KindValidation is a malformed request or unknown entity. Never retried, never counted.
	KindValidation ErrorKind = "VALIDATION"
	// KindTransient is a recoverable backend condition (overload, lock contention)
	KindTransient ErrorKind = "TRANSIENT"
	// KindConnection is a network or session failure
	KindConnection ErrorKind = "CONNECTION"
	// KindTimeout is an attempt that exceeded its time budget
	KindTimeout ErrorKind = "TIMEOUT"
	// KindCircuitOpen is a call rejected by an open breaker without reaching the backend
	KindCircuitOpen ErrorKind = "CIRCUIT_OPEN"
	// KindCanceled is a cancellation requested by the caller
	KindCanceled ErrorKind = "CANCELED"
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	return string(k)
}

// IsRetryable returns true if a failure of this kind may succeed on retry
func (k ErrorKind) IsRetryable() bool {
	switch k {
	case KindTransient, KindConnection, KindTimeout:
		return true
	default:
		return false
	}
}

// CountsTowardBreaker returns true if a failure of this kind is recorded as a
// failure by the circuit breaker. The set is closed on purpose: a new kind is
// excluded until it is listed here.
func (k ErrorKind) CountsTowardBreaker() bool {
	switch k {
	case KindTransient, KindConnection, KindTimeout:
		return true
	default:
		return false
	}
}

// Error is a classified ERP integration fault
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("integration: %s [%s]: %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("integration: %s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a non-transient error for malformed input
func NewValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// NewTransientError creates a recoverable ERP error (overload, lock contention)
func NewTransientError(code, message string) *Error {
	return &Error{Kind: KindTransient, Code: code, Message: message}
}

// NewConnectionError wraps a network or session failure
func NewConnectionError(err error) *Error {
	return &Error{Kind: KindConnection, Code: "CONNECTION_FAILED", Err: err}
}

// KindOf classifies an error. The classification is explicit: classified
// *Error values and known sentinels first, then network errors, then caller
// cancellation. Anything else is KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return KindCircuitOpen
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrTenantMismatch),
		errors.Is(err, ErrUnknownProviderType),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidPageToken),
		errors.Is(err, ErrInvalidWatermark),
		errors.Is(err, ErrBatchTooLarge),
		errors.Is(err, ErrCapabilityMissing),
		errors.Is(err, ErrInvalidTenantID):
		return KindValidation
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}

	return KindUnknown
}

// IsRetryable returns true if err is classified as transient
func IsRetryable(err error) bool {
	return KindOf(err).IsRetryable()
}

// IsValidation returns true if err is classified as a validation error
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}
