// Package postgres provides the PostgreSQL implementation of store.RequestStore
// and the provider directory source. Queries run through database/sql on the
// pgx stdlib driver; live watches hold a dedicated native pgx connection that
// LISTENs on the request_changes channel fed by a row trigger. The schema is
// embedded and applied with goose.
package postgres
