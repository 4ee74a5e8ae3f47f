package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/phrazzld/detailer-api/internal/config"
	"github.com/phrazzld/detailer-api/internal/directory"
	"github.com/phrazzld/detailer-api/internal/events"
	"github.com/phrazzld/detailer-api/internal/feed"
	"github.com/phrazzld/detailer-api/internal/metrics"
	fsstore "github.com/phrazzld/detailer-api/internal/platform/firestore"
	"github.com/phrazzld/detailer-api/internal/platform/memory"
	"github.com/phrazzld/detailer-api/internal/platform/postgres"
	"github.com/phrazzld/detailer-api/internal/service"
	"github.com/phrazzld/detailer-api/internal/service/auth"
	"github.com/phrazzld/detailer-api/internal/store"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Backend handles, set for the selected backend only
	db              *sql.DB
	firestoreClient *firestore.Client

	requestStore store.RequestStore
	directory    *directory.Listing
	eventEmitter *events.InMemoryEventEmitter

	requestService service.RequestService
	feeds          *feed.Channel
	jwtService     auth.JWTService
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	source, err := app.setupBackend(ctx)
	if err != nil {
		app.cleanup()
		return nil, err
	}
	app.directory = directory.NewListing(source, logger)

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.NewLoggingHandler(logger))
	app.eventEmitter.RegisterHandler(metrics.EventHandler())

	app.requestService, err = service.NewRequestService(app.requestStore, app.directory, app.eventEmitter, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create request service: %w", err)
	}

	app.feeds, err = feed.NewChannel(app.requestStore, feed.OptionsFromConfig(cfg.Feed), logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create live channel: %w", err)
	}

	logger.Info("Application initialized successfully", "store_backend", cfg.Store.Backend)
	return app, nil
}

// setupBackend opens the configured document store and returns the matching
// provider catalog source.
func (app *application) setupBackend(ctx context.Context) (directory.Source, error) {
	cfg := app.config
	switch cfg.Store.Backend {
	case config.BackendMemory:
		app.requestStore = memory.NewRequestStore(app.logger)
		return &directory.StaticSource{Providers: directory.DefaultCatalog()}, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Database.URL,
			cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
		if err != nil {
			return nil, err
		}
		app.db = db
		app.requestStore = postgres.NewPostgresRequestStore(db, postgres.DSNConnector(cfg.Database.URL), app.logger)
		return postgres.NewPostgresProviderStore(db, app.logger), nil

	case config.BackendFirestore:
		client, err := fsstore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, err
		}
		app.firestoreClient = client
		app.requestStore = fsstore.NewRequestStore(client, cfg.Firestore.RequestsCollection, app.logger)
		return fsstore.NewProviderStore(client, cfg.Firestore.ProvidersCollection, app.logger), nil

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
	if app.firestoreClient != nil {
		if err := app.firestoreClient.Close(); err != nil {
			app.logger.Error("Error closing firestore client", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
