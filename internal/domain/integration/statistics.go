package integration

import "github.com/google/uuid"

// ActorStatistics is a read-only snapshot of a tenant actor's counters
type ActorStatistics struct {
	TenantID uuid.UUID `json:"tenant_id"`
	// Processed is the number of operations that completed successfully
	Processed int64 `json:"processed"`
	// Failed is the number of operations that completed with a terminal failure
	Failed int64 `json:"failed"`
	// Queued is the number of operations waiting for the actor
	Queued int64 `json:"queued"`
	// Ready indicates the actor is initialized and not disposed
	Ready bool `json:"ready"`
}
