package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/detailer-api/internal/store"
	"github.com/stretchr/testify/assert"
)

type rowsResult struct {
	rows int64
	err  error
}

func (r rowsResult) LastInsertId() (int64, error) { return 0, nil }
func (r rowsResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "requests_pkey"}, store.ErrConflict},
		{"check violation", &pgconn.PgError{Code: checkViolationCode, ConstraintName: "requests_status_check"}, store.ErrInvalidEntity},
		{"foreign key violation", &pgconn.PgError{Code: foreignKeyViolationCode}, store.ErrInvalidEntity},
		{"not null violation", &pgconn.PgError{Code: notNullViolationCode, ColumnName: "status"}, store.ErrInvalidEntity},
		{"bad uuid", &pgconn.PgError{Code: invalidTextRepresentationCode}, store.ErrNotFound},
		{"connection done", sql.ErrConnDone, store.ErrUnavailable},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), store.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestMapError_Passthrough(t *testing.T) {
	assert.NoError(t, MapError(nil))
	assert.ErrorIs(t, MapError(context.Canceled), context.Canceled)
	assert.Equal(t, context.DeadlineExceeded, MapError(context.DeadlineExceeded))

	other := errors.New("boom")
	assert.Equal(t, other, MapError(other))

	unknownPg := &pgconn.PgError{Code: "XX000"}
	assert.Equal(t, error(unknownPg), MapError(unknownPg))
}

func TestCheckRowsAffected(t *testing.T) {
	assert.NoError(t, CheckRowsAffected(rowsResult{rows: 1}, "request"))
	assert.ErrorIs(t, CheckRowsAffected(rowsResult{rows: 0}, "request"), store.ErrNotFound)
	assert.ErrorIs(t, CheckRowsAffected(rowsResult{rows: 0}, ""), store.ErrNotFound)
	assert.Error(t, CheckRowsAffected(nil, "request"))
	assert.Error(t, CheckRowsAffected(rowsResult{err: errors.New("driver")}, "request"))
}
