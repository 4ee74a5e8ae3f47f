// Package feed turns the store's raw watches into live subscriptions.
//
// A Subscription delivers full snapshots of the requests one viewer may see.
// Delivery never blocks the store: each subscription buffers at most one
// undelivered snapshot and a newer one replaces it. Snapshots that would move
// a request backwards out of a terminal status are dropped. When the
// underlying watch fails, the subscription re-opens it with exponential
// backoff and closes with a *ChannelError once the attempts run out.
package feed
