package integration

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var requestValidator = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// ValidateOrderRequest checks an order request before it is sent to a backend.
// The returned error is a validation error naming every offending field.
func ValidateOrderRequest(req *OrderRequest) error {
	if req == nil {
		return NewValidationError(CodeValidationFailed, "order request is required")
	}

	var problems []string
	if err := requestValidator().Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
	}
	for i, line := range req.Lines {
		if !line.Quantity.IsPositive() {
			problems = append(problems, fmt.Sprintf("OrderRequest.Lines[%d].Quantity must be positive", i))
		}
		if line.UnitPrice.IsNegative() {
			problems = append(problems, fmt.Sprintf("OrderRequest.Lines[%d].UnitPrice must not be negative", i))
		}
	}

	if len(problems) > 0 {
		return &Error{
			Kind:    KindValidation,
			Code:    CodeValidationFailed,
			Message: strings.Join(problems, "; "),
			Err:     ErrInvalidRequest,
		}
	}
	return nil
}
