// Package integration contains the ERP Integration bounded context.
// This context defines the uniform contract through which the platform talks
// to tenant ERP backends (SAP, Oracle-class systems, and a deterministic fake).
//
// Key concepts:
//   - Provider: Port interface every ERP connector implements
//   - TenantContext: Immutable identity of the tenant a call is made for
//   - Result: Typed outcome of a provider call (payload or structured failure)
//   - Operation: Bound unit of work executed by a tenant actor
//   - Error: Classified fault (validation, transient, connection, timeout, circuit open)
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (connectors, resilience, actors) are in the infrastructure layer
package integration
