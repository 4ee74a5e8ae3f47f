// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying document store from the request
// lifecycle, so the same rules run against the in-memory, PostgreSQL and
// Firestore backends in internal/platform.
package store
