package dto

import (
	"errors"
	"net/http"

	"github.com/erp/erpcore/internal/domain/integration"
)

// Error codes of the ops API. Classified integration errors keep their own
// code; these cover request problems and unclassified faults.
const (
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeNotFound   = "ERR_NOT_FOUND"
	ErrCodeInternal   = "ERR_INTERNAL"
)

// KindHTTPStatus maps integration error kinds to HTTP status codes
var KindHTTPStatus = map[integration.ErrorKind]int{
	integration.KindValidation:  http.StatusBadRequest,
	integration.KindTransient:   http.StatusServiceUnavailable,
	integration.KindConnection:  http.StatusBadGateway,
	integration.KindTimeout:     http.StatusGatewayTimeout,
	integration.KindCircuitOpen: http.StatusServiceUnavailable,
	// nginx convention for a client that went away
	integration.KindCanceled: 499,
	integration.KindUnknown:  http.StatusInternalServerError,
}

// GetHTTPStatus returns the status for an error kind, 500 when unmapped
func GetHTTPStatus(kind integration.ErrorKind) int {
	if status, ok := KindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorInfoFrom classifies err into a status code and error body
func ErrorInfoFrom(err error) (int, ErrorInfo) {
	kind := integration.KindOf(err)
	info := ErrorInfo{
		Code:      ErrCodeInternal,
		Message:   err.Error(),
		Kind:      kind.String(),
		Retryable: kind.IsRetryable(),
	}
	var ie *integration.Error
	if errors.As(err, &ie) && ie.Code != "" {
		info.Code = ie.Code
	} else if kind != integration.KindUnknown {
		info.Code = kind.String()
	}
	return GetHTTPStatus(kind), info
}

// FailureInfo converts a recoverable provider failure into an error body
func FailureInfo(f *integration.Failure) ErrorInfo {
	return ErrorInfo{
		Code:      f.Code,
		Message:   f.Message,
		Retryable: f.Retryable,
	}
}
