package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. CINESCOPE_TMDB_API_KEY
const EnvPrefix = "CINESCOPE"

// placeholderKey is the value shipped in the example config
const placeholderKey = "your-api-key-here"

// ErrMissingCredentials is returned when neither a TMDB api key nor a read access token is set
var ErrMissingCredentials = errors.New("tmdb.api_key or tmdb.read_access_token must be set")

// Load loads the configuration from file and environment. A missing config
// file is not an error; a .env file in the working directory is applied first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".cinescope"))
		}

		// Check /etc
		v.AddConfigPath("/etc/cinescope/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed reports which file Load would read for configPath, or "" if none.
func ConfigFileUsed(configPath string) string {
	if configPath != "" {
		return configPath
	}
	candidates := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".cinescope", "config.yaml"))
	}
	candidates = append(candidates, "/etc/cinescope/config.yaml")
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// setDefaults sets default configuration values. Every key has a default so
// that environment overrides are picked up by AutomaticEnv.
func setDefaults(v *viper.Viper) {
	// TMDB defaults
	v.SetDefault("tmdb.api_key", "")
	v.SetDefault("tmdb.read_access_token", "")
	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.language", "en-US")
	v.SetDefault("tmdb.timeout", 30*time.Second)
	v.SetDefault("tmdb.breaker.enabled", true)
	v.SetDefault("tmdb.breaker.max_failures", 5)
	v.SetDefault("tmdb.breaker.open_timeout", 30*time.Second)
	v.SetDefault("tmdb.breaker.half_open_requests", 1)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	// Store defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.path", "cinescope.db")

	// Browse defaults
	v.SetDefault("browse.debounce", 300*time.Millisecond)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "cinescope")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.user.id", "")
	v.SetDefault("auth.user.name", "")
	v.SetDefault("auth.user.photo", "")
	v.SetDefault("auth.user.email", "")

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.warm_schedule", "@every 10m")
	v.SetDefault("server.require_auth", false)

	// Filter defaults
	v.SetDefault("filter.default_expression", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.TMDB.Timeout <= 0 {
		return fmt.Errorf("tmdb.timeout must be positive")
	}

	validBackends := map[string]bool{
		"none":   true,
		"memory": true,
		"redis":  true,
	}
	if !validBackends[cfg.Cache.Backend] {
		return fmt.Errorf("invalid cache.backend: %s (must be 'none', 'memory' or 'redis')", cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}

	switch cfg.Store.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	case "badger":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for the badger driver")
		}
	default:
		return fmt.Errorf("invalid store.driver: %s (must be 'sqlite', 'postgres' or 'badger')", cfg.Store.Driver)
	}

	if cfg.Browse.Debounce < 0 {
		return fmt.Errorf("browse.debounce must not be negative")
	}

	if cfg.Server.RequireAuth && cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when server.require_auth is set")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}

// ValidateCatalog checks the TMDB credentials. Commands that talk to the
// catalog call it after Load.
func (c *Config) ValidateCatalog() error {
	key := c.TMDB.APIKey
	if key == placeholderKey {
		key = ""
	}
	if key == "" && c.TMDB.ReadAccessToken == "" {
		return ErrMissingCredentials
	}
	return nil
}

// HasUser reports whether a CLI user identity is configured.
func (c *Config) HasUser() bool {
	return c.Auth.User.ID != ""
}
