// Package events carries request lifecycle notifications from the service
// layer to side consumers such as metrics and audit logging. Services emit
// events without knowing which handlers will process them.
//
// Events describe outcomes the document store already confirmed; they are
// not the live feed. Viewers observe state through internal/feed.
package events
