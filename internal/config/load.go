package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. DETAILER_SERVER_PORT.
const EnvPrefix = "DETAILER"

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it, and both win over config.yaml.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the backend-specific requirements.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	switch cfg.Store.Backend {
	case BackendPostgres:
		if cfg.Database.URL == "" {
			return fmt.Errorf("config validation failed: database.url is required for the %s backend",
				BackendPostgres)
		}
	case BackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			return fmt.Errorf("config validation failed: firestore.project_id is required for the %s backend",
				BackendFirestore)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime_minutes", 5)
	v.SetDefault("firestore.requests_collection", "requests")
	v.SetDefault("firestore.providers_collection", "detailers")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("feed.resync_max_attempts", 8)
	v.SetDefault("feed.resync_base_delay_ms", 200)
	v.SetDefault("feed.resync_max_delay_ms", 10000)
	v.SetDefault("feed.websocket_ping_seconds", 30)
}

// bindEnvs registers every key explicitly so AutomaticEnv sees keys that have
// no default (viper only consults the environment for keys it knows about).
func bindEnvs(v *viper.Viper) {
	keys := []string{
		"server.port", "server.log_level",
		"store.backend",
		"database.url", "database.max_open_conns", "database.max_idle_conns",
		"database.conn_max_lifetime_minutes",
		"firestore.project_id", "firestore.requests_collection", "firestore.providers_collection",
		"auth.jwt_secret", "auth.token_lifetime_minutes",
		"feed.resync_max_attempts", "feed.resync_base_delay_ms", "feed.resync_max_delay_ms",
		"feed.websocket_ping_seconds",
	}
	for _, key := range keys {
		// BindEnv only fails when called without a key
		_ = v.BindEnv(key)
	}
}
