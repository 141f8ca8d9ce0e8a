package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	TMDB    TMDBConfig    `mapstructure:"tmdb"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
	Browse  BrowseConfig  `mapstructure:"browse"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Server  ServerConfig  `mapstructure:"server"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TMDBConfig holds catalog API connection details
type TMDBConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	ReadAccessToken string        `mapstructure:"read_access_token"`
	BaseURL         string        `mapstructure:"base_url"`
	Language        string        `mapstructure:"language"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Breaker         BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig tunes the catalog circuit breaker
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxFailures      uint32        `mapstructure:"max_failures"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
}

// CacheConfig selects the catalog response cache
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Size    int           `mapstructure:"size"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds redis connection details
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreConfig selects the favorites and reviews backend
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Path   string `mapstructure:"path"`
}

// BrowseConfig tunes the list controller
type BrowseConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// AuthConfig holds token settings and the CLI user
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	User      UserConfig    `mapstructure:"user"`
}

// UserConfig is the identity CLI commands act as
type UserConfig struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Photo string `mapstructure:"photo"`
	Email string `mapstructure:"email"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr         string   `mapstructure:"addr"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	WarmSchedule string   `mapstructure:"warm_schedule"`
	RequireAuth  bool     `mapstructure:"require_auth"`
}

// FilterConfig contains filter definitions
type FilterConfig struct {
	DefaultExpression string            `mapstructure:"default_expression"`
	Presets           map[string]string `mapstructure:"presets"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
