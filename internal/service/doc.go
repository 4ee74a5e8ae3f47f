// Package service contains the request lifecycle use cases. It orchestrates
// the domain rules in internal/domain, the persistence contract in
// internal/store and the provider directory to fulfill customer and provider
// actions.
//
// Key components:
//
// 1. RequestService:
//   - Create submits a new pending request addressed to a listed provider
//   - Accept, Decline and Cancel resolve a pending request through a
//     conditional status write, so concurrent resolutions have one winner
//   - ListForCustomer, ListForProvider and Get are the one-shot read paths
//
// 2. Error Handling:
//   - Store and domain errors are translated to the sentinels in errors.go
//   - A write whose outcome is unknown (deadline or cancellation mid-flight)
//     is reported as ErrUnknownOutcome and must be confirmed by re-reading
//
// The service layer depends on domain entities and store interfaces, never on
// a specific backend in internal/platform.
package service
