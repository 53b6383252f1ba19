package integration

// DefaultPageSize is used when a page request does not specify a size
const DefaultPageSize = 100

// PageRequest asks for one page of entities
type PageRequest struct {
	// Filter is a provider-interpreted filter expression (e.g. name prefix); empty means all
	Filter string
	// PageSize is the requested number of items. Providers may return fewer.
	PageSize int
	// ContinuationToken resumes after the previous page; empty starts from the beginning
	ContinuationToken string
}

// SizeOrDefault returns the requested page size or DefaultPageSize
func (r PageRequest) SizeOrDefault() int {
	if r.PageSize <= 0 {
		return DefaultPageSize
	}
	return r.PageSize
}

// PagedResult is one page of a paged read
type PagedResult[T any] struct {
	// Items holds the entities on this page
	Items []T `json:"items"`
	// ContinuationToken resumes at the next page; empty means this is the last page
	ContinuationToken string `json:"continuation_token,omitempty"`
	// TotalCount is the total number of matching entities when the backend can count cheaply
	TotalCount *int64 `json:"total_count,omitempty"`
}

// HasMore returns true if another page is available
func (p *PagedResult[T]) HasMore() bool {
	return p.ContinuationToken != ""
}
