// Package domain contains the request lifecycle entities: the Request a
// customer sends to a provider, its RequestStatus, the Role an identity acts
// under, and the transition table that decides which status changes are
// legal. Nothing here knows about storage or transport.
package domain
