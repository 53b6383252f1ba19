package integration

import (
	"errors"
	"fmt"
)

// Failure codes shared by connectors. Backend-specific codes may be used as well.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnsupported      = "UNSUPPORTED"
	CodeConflict         = "CONFLICT"
	CodeBackendBusy      = "BACKEND_BUSY"
	CodeRateLimited      = "RATE_LIMITED"
	CodeLocked           = "ENTITY_LOCKED"
	CodeBackendError     = "BACKEND_ERROR"
)

// Failure is a structured, expected failure returned by a provider
type Failure struct {
	// Code is a stable machine-readable error code
	Code string `json:"code"`
	// Message is a human-readable description
	Message string `json:"message"`
	// Retryable indicates if the same call may succeed if repeated
	Retryable bool `json:"retryable"`
}

// Error implements the error interface so a failure can travel through error paths
func (f *Failure) Error() string {
	return fmt.Sprintf("integration: %s: %s", f.Code, f.Message)
}

// AsError converts the failure into a classified error.
// Retryable failures are transient ERP errors; the rest are validation-type.
func (f *Failure) AsError() *Error {
	kind := KindValidation
	if f.Retryable {
		kind = KindTransient
	}
	return &Error{Kind: kind, Code: f.Code, Message: f.Message, Err: f}
}

// Result is the typed outcome of a provider operation: either a success
// payload or a structured failure. Expected failure modes are reported here;
// unexpected faults are returned as a separate error.
type Result[T any] struct {
	value   T
	failure *Failure
}

// Ok creates a successful result. A nil/zero payload means "not found".
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Fail creates a failed result
func Fail[T any](code, message string, retryable bool) Result[T] {
	return Result[T]{failure: &Failure{Code: code, Message: message, Retryable: retryable}}
}

// FailWith creates a failed result from an existing failure
func FailWith[T any](f *Failure) Result[T] {
	return Result[T]{failure: f}
}

// FailFrom creates a failed result from a classified error
func FailFrom[T any](err error) Result[T] {
	var f *Failure
	if errors.As(err, &f) {
		return FailWith[T](f)
	}
	kind := KindOf(err)
	code := kind.String()
	var ie *Error
	if errors.As(err, &ie) && ie.Code != "" {
		code = ie.Code
	}
	return Fail[T](code, err.Error(), kind.IsRetryable())
}

// IsSuccess returns true if the result carries a payload
func (r Result[T]) IsSuccess() bool {
	return r.failure == nil
}

// IsFailure returns true if the result carries a failure
func (r Result[T]) IsFailure() bool {
	return r.failure != nil
}

// Value returns the success payload (zero if the result is a failure)
func (r Result[T]) Value() T {
	return r.value
}

// Failure returns the structured failure, or nil on success
func (r Result[T]) Failure() *Failure {
	return r.failure
}

// Unwrap returns the payload, or the failure as an error
func (r Result[T]) Unwrap() (T, error) {
	if r.failure != nil {
		var zero T
		return zero, r.failure
	}
	return r.value, nil
}
