// Package memory provides an in-process implementation of store.RequestStore.
// It backs local development and tests, and follows the same contract as the
// PostgreSQL and Firestore backends: store-assigned IDs, compare-and-set
// status updates, and watches that deliver full ordered snapshots.
package memory
