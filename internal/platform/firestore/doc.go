// Package firestore provides the Cloud Firestore implementation of
// store.RequestStore and the provider directory source. Documents keep the
// collection and field names of the existing web client ("requests" keyed by
// customerId/detailerId, "detailers" for the catalog), so both can share a
// project. Status changes run inside a transaction that re-reads the status
// before writing; live watches use query snapshot listeners.
package firestore
