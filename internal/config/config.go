package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Store     StoreConfig     `mapstructure:"store"     validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Feed      FeedConfig      `mapstructure:"feed"      validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
}

// Document store backends.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory postgres firestore"`
}

// DatabaseConfig contains PostgreSQL settings. Required when store.backend is postgres.
type DatabaseConfig struct {
	URL             string `mapstructure:"url"               validate:"omitempty,url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"    validate:"gte=0"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=0"`
}

// FirestoreConfig contains Firestore settings. Required when store.backend is firestore.
type FirestoreConfig struct {
	ProjectID           string `mapstructure:"project_id"`
	RequestsCollection  string `mapstructure:"requests_collection"  validate:"required"`
	ProvidersCollection string `mapstructure:"providers_collection" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// FeedConfig tunes how live subscriptions recover from a dropped watch.
type FeedConfig struct {
	ResyncMaxAttempts int `mapstructure:"resync_max_attempts"   validate:"required,gt=0"`
	ResyncBaseDelayMs int `mapstructure:"resync_base_delay_ms"  validate:"required,gt=0"`
	ResyncMaxDelayMs  int `mapstructure:"resync_max_delay_ms"   validate:"required,gtefield=ResyncBaseDelayMs"`
	WebsocketPingSecs int `mapstructure:"websocket_ping_seconds" validate:"required,gt=0"`
}
