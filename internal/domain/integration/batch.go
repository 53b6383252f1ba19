package integration

import (
	"errors"
	"fmt"
)

// BatchError describes the failure of one item in a bulk write
type BatchError struct {
	// ItemID identifies the submitted item (e.g. the order's external reference)
	ItemID string `json:"item_id"`
	// Code is the failure code
	Code string `json:"code"`
	// Message is the failure description
	Message string `json:"message"`
}

// BatchResult reports the outcome of a bulk write. Partial failure is a
// successful call: callers must inspect the counts and errors.
type BatchResult struct {
	Submitted    int          `json:"submitted"`
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
	Errors       []BatchError `json:"errors,omitempty"`
}

// Validate checks the accounting invariant SuccessCount + FailureCount == Submitted
func (b *BatchResult) Validate() error {
	if b.SuccessCount+b.FailureCount != b.Submitted {
		return fmt.Errorf("integration: batch accounting mismatch: %d succeeded + %d failed != %d submitted",
			b.SuccessCount, b.FailureCount, b.Submitted)
	}
	if len(b.Errors) != b.FailureCount {
		return fmt.Errorf("integration: batch has %d failures but %d error entries", b.FailureCount, len(b.Errors))
	}
	return nil
}

// IsComplete returns true if every item succeeded
func (b *BatchResult) IsComplete() bool {
	return b.FailureCount == 0
}

// BatchBuilder accumulates per-item outcomes so the accounting invariant holds by construction
type BatchBuilder struct {
	result BatchResult
}

// NewBatchBuilder creates a builder for a batch of n submitted items
func NewBatchBuilder(n int) *BatchBuilder {
	return &BatchBuilder{result: BatchResult{Submitted: n, Errors: make([]BatchError, 0)}}
}

// Succeed records a successful item
func (b *BatchBuilder) Succeed() {
	b.result.SuccessCount++
}

// Fail records a failed item
func (b *BatchBuilder) Fail(itemID, code, message string) {
	b.result.FailureCount++
	b.result.Errors = append(b.result.Errors, BatchError{ItemID: itemID, Code: code, Message: message})
}

// FailErr records a failed item from an error
func (b *BatchBuilder) FailErr(itemID string, err error) {
	code := KindOf(err).String()
	var ie *Error
	if errors.As(err, &ie) && ie.Code != "" {
		code = ie.Code
	}
	b.Fail(itemID, code, err.Error())
}

// Result returns the accumulated result. Items never recorded are counted as
// failures so the invariant still holds.
func (b *BatchBuilder) Result() *BatchResult {
	res := b.result
	res.Errors = append([]BatchError(nil), b.result.Errors...)
	for missing := res.Submitted - res.SuccessCount - res.FailureCount; missing > 0; missing-- {
		res.FailureCount++
		res.Errors = append(res.Errors, BatchError{Code: CodeBackendError, Message: "item outcome not reported"})
	}
	return &res
}
