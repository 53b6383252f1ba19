// Package resilience wraps ERP backend calls in a per-tenant policy pipeline.
//
// Policies are composed innermost to outermost:
//
//	timeout -> retry -> circuit breaker
//
// Each attempt is bounded by its own timeout. Transient failures are retried
// with exponential backoff and jitter. The breaker sees one outcome per
// pipeline call (after retries are exhausted) and rejects calls with
// integration.ErrCircuitOpen while open.
//
// Failure classification is explicit and delegated to integration.KindOf.
// Only transient, connection and timeout failures are retried or counted
// against the breaker. Cancellation requested by the caller stops the
// pipeline and is never recorded.
package resilience
