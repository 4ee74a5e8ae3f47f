package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/phrazzld/detailer-api/internal/platform/logger"
	"github.com/phrazzld/detailer-api/internal/store"
)

const requestColumns = `
	id::text, customer_id, provider_id, provider_display_name,
	service_description, vehicle_category, contact_name, contact_phone,
	contact_email, preferred_date, preferred_time, status, created_at`

// PostgresRequestStore implements the store.RequestStore interface
// using a PostgreSQL database as the storage backend.
type PostgresRequestStore struct {
	db      store.DBTX
	connect Connector
	logger  *slog.Logger
}

// NewPostgresRequestStore creates a new PostgreSQL implementation of the RequestStore interface.
// db serves reads and writes; connect opens the dedicated connections Watch listens on.
// If logger is nil, a default logger will be used.
func NewPostgresRequestStore(db store.DBTX, connect Connector, logger *slog.Logger) *PostgresRequestStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRequestStore{
		db:      db,
		connect: connect,
		logger:  logger.With(slog.String("component", "request_store")),
	}
}

// Ensure PostgresRequestStore implements store.RequestStore interface
var _ store.RequestStore = (*PostgresRequestStore)(nil)

// Insert implements store.RequestStore.Insert.
// The identifier is generated here, so the passed request is not modified.
func (s *PostgresRequestStore) Insert(ctx context.Context, req *domain.Request) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if req == nil {
		return "", fmt.Errorf("%w: nil request", store.ErrInvalidEntity)
	}
	if err := req.Validate(); err != nil {
		log.Warn("request validation failed during insert", slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	id := uuid.New()

	query := `
		INSERT INTO requests (
			id, customer_id, provider_id, provider_display_name,
			service_description, vehicle_category, contact_name, contact_phone,
			contact_email, preferred_date, preferred_time, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		id,
		req.CustomerID,
		req.ProviderID,
		req.ProviderDisplayName,
		req.ServiceDescription,
		req.VehicleCategory,
		req.ContactName,
		req.ContactPhone,
		req.ContactEmail,
		req.PreferredDate,
		req.PreferredTime,
		req.Status,
		req.CreatedAt,
	)
	if err != nil {
		log.Error("failed to insert request",
			slog.String("error", err.Error()),
			slog.String("customer_id", req.CustomerID),
			slog.String("provider_id", req.ProviderID))
		return "", store.NewStoreError("request", "insert", "failed to insert request", MapError(err))
	}

	log.Info("request inserted",
		slog.String("request_id", id.String()),
		slog.String("customer_id", req.CustomerID),
		slog.String("provider_id", req.ProviderID))
	return id.String(), nil
}

// GetByID implements store.RequestStore.GetByID.
// Returns store.ErrRequestNotFound if the request does not exist.
func (s *PostgresRequestStore) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrRequestNotFound
	}

	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("request not found", slog.String("request_id", id))
			return nil, store.ErrRequestNotFound
		}
		log.Error("failed to get request by ID",
			slog.String("error", err.Error()),
			slog.String("request_id", id))
		return nil, store.NewStoreError("request", "get", "failed to load request", MapError(err))
	}

	return req, nil
}

// UpdateStatus implements store.RequestStore.UpdateStatus.
// The WHERE clause on status makes the check and the write one statement.
func (s *PostgresRequestStore) UpdateStatus(
	ctx context.Context,
	id string,
	expected, next domain.RequestStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !next.Valid() {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrInvalidStatus)
	}
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrRequestNotFound
	}

	query := `
		UPDATE requests
		SET status = $3
		WHERE id = $1 AND status = $2
	`
	result, err := s.db.ExecContext(ctx, query, id, expected, next)
	if err != nil {
		log.Error("failed to update request status",
			slog.String("error", err.Error()),
			slog.String("request_id", id),
			slog.String("status", string(next)))
		return store.NewStoreError("request", "update_status", "failed to update status", MapError(err))
	}

	err = CheckRowsAffected(result, "request")
	if err == nil {
		log.Info("request status updated",
			slog.String("request_id", id),
			slog.String("from", string(expected)),
			slog.String("to", string(next)))
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.NewStoreError("request", "update_status", "failed to confirm update", err)
	}

	// Nothing updated: either the row is gone or another writer got there first.
	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM requests WHERE id = $1`, id).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrRequestNotFound
	case err != nil:
		return store.NewStoreError("request", "update_status", "failed to read current status", MapError(err))
	}

	log.Debug("status update lost compare-and-set",
		slog.String("request_id", id),
		slog.String("expected", string(expected)),
		slog.String("actual", current))
	return store.ErrConflict
}

// Query implements store.RequestStore.Query.
func (s *PostgresRequestStore) Query(ctx context.Context, filter store.Filter) ([]*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	column, value := "customer_id", filter.CustomerID
	if filter.Role() == domain.RoleProvider {
		column, value = "provider_id", filter.ProviderID
	}

	query := `SELECT ` + requestColumns + ` FROM requests WHERE ` + column + ` = $1
		ORDER BY created_at DESC, id::text ASC`

	rows, err := s.db.QueryContext(ctx, query, value)
	if err != nil {
		log.Error("failed to query requests",
			slog.String("error", err.Error()),
			slog.String("filter", filter.String()))
		return nil, store.NewStoreError("request", "query", "failed to query requests", MapError(err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close rows", slog.String("error", cerr.Error()))
		}
	}()

	out := make([]*domain.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, store.NewStoreError("request", "query", "failed to scan request", MapError(err))
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("request", "query", "failed to iterate requests", MapError(err))
	}

	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	var (
		req       domain.Request
		status    string
		createdAt time.Time
	)
	err := row.Scan(
		&req.ID,
		&req.CustomerID,
		&req.ProviderID,
		&req.ProviderDisplayName,
		&req.ServiceDescription,
		&req.VehicleCategory,
		&req.ContactName,
		&req.ContactPhone,
		&req.ContactEmail,
		&req.PreferredDate,
		&req.PreferredTime,
		&status,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	req.Status = domain.RequestStatus(status)
	req.CreatedAt = createdAt.UTC()
	return &req, nil
}
