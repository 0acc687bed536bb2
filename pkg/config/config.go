package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/lineage/pkg/middleware"
	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Auth maps bearer tokens to visibility filters
	Auth AuthConfig

	// RateLimit throttles lineage queries per caller
	RateLimit RateLimitConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// RequestTimeout bounds a single lineage query. Zero disables it.
	RequestTimeout time.Duration
	CORSOrigins    []string

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds API authentication settings
type AuthConfig struct {
	// TokensFile is a YAML file of token grants
	TokensFile string
	// AnonymousReaders are applied to requests without a token
	AnonymousReaders []string
	// Disabled gives every request an admin filter. Development only.
	Disabled bool
}

// AnonymousFilter returns the filter for unauthenticated requests, or nil
// when a token is required
func (a AuthConfig) AnonymousFilter() *visibility.Filter {
	switch {
	case a.Disabled:
		f := visibility.AllowAll()
		return &f
	case len(a.AnonymousReaders) > 0:
		f := visibility.ReadableBy(a.AnonymousReaders...)
		return &f
	}
	return nil
}

// RateLimitConfig holds request throttling settings
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
	// Distributed shares counters through Redis when a Redis URL is set
	Distributed bool
}

// Limits converts the settings for the rate limit middleware
func (r RateLimitConfig) Limits() *middleware.RateLimitConfig {
	return &middleware.RateLimitConfig{
		RequestsPerWindow: r.RequestsPerWindow,
		WindowDuration:    r.Window,
		BurstSize:         r.Burst,
	}
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Auth:          loadAuthConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("LINEAGE_HOST", "0.0.0.0"),
		Port:            getEnv("LINEAGE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("LINEAGE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("LINEAGE_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getEnvDuration("LINEAGE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("LINEAGE_SHUTDOWN_TIMEOUT", 30*time.Second),
		RequestTimeout:  getEnvDuration("LINEAGE_REQUEST_TIMEOUT", 30*time.Second),
		CORSOrigins:     getEnvList("LINEAGE_CORS_ORIGINS"),
		HealthPort:      getEnv("LINEAGE_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// Storage type
	if storageType := getEnv("LINEAGE_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = storageType
	}

	// Memory config
	cfg.FixturePath = getEnv("LINEAGE_FIXTURE_PATH", "")

	// Filesystem config
	if fsRoot := getEnv("LINEAGE_FILESYSTEM_ROOT", ""); fsRoot != "" {
		cfg.FilesystemRoot = fsRoot
	}
	cfg.WatchFiles = getEnvBool("LINEAGE_FILESYSTEM_WATCH", true)

	// SQLite config
	if sqlitePath := getEnv("LINEAGE_SQLITE_PATH", ""); sqlitePath != "" {
		cfg.SQLitePath = sqlitePath
	}

	// PostgreSQL config
	if pgURL := getEnv("LINEAGE_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if replicaURLs := getEnv("LINEAGE_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = replicaURLs
	}
	if maxConns := getEnvInt("LINEAGE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("LINEAGE_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("LINEAGE_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}
	cfg.PostgresMigrate = getEnvBool("LINEAGE_POSTGRES_MIGRATE", false)

	// Redis config
	if redisURL := getEnv("LINEAGE_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("LINEAGE_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("LINEAGE_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("LINEAGE_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("LINEAGE_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache config
	if cacheEnabled := getEnv("LINEAGE_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}
	if l1CacheSize := getEnvInt("LINEAGE_L1_CACHE_SIZE", 0); l1CacheSize > 0 {
		cfg.L1CacheSize = l1CacheSize
	}
	if ttl := getEnvDuration("LINEAGE_CACHE_TTL", 0); ttl > 0 {
		cfg.CacheTTL["object"] = ttl
	}
	if ttl := getEnvDuration("LINEAGE_L1_CACHE_TTL", 0); ttl > 0 {
		cfg.CacheTTL["object_l1"] = ttl
	}

	return cfg
}

// loadAuthConfig loads API authentication settings from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		TokensFile:       getEnv("LINEAGE_TOKENS_FILE", ""),
		AnonymousReaders: getEnvList("LINEAGE_ANONYMOUS_READERS"),
		Disabled:         getEnvBool("LINEAGE_AUTH_DISABLED", false),
	}
}

// loadRateLimitConfig loads rate limit settings from environment
func loadRateLimitConfig() RateLimitConfig {
	defaults := middleware.DefaultRateLimitConfig()
	return RateLimitConfig{
		Enabled:           getEnvBool("LINEAGE_RATE_LIMIT_ENABLED", true),
		RequestsPerWindow: getEnvInt("LINEAGE_RATE_LIMIT_REQUESTS", defaults.RequestsPerWindow),
		Window:            getEnvDuration("LINEAGE_RATE_LIMIT_WINDOW", defaults.WindowDuration),
		Burst:             getEnvInt("LINEAGE_RATE_LIMIT_BURST", defaults.BurstSize),
		Distributed:       getEnvBool("LINEAGE_RATE_LIMIT_DISTRIBUTED", false),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("LINEAGE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("LINEAGE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("LINEAGE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("LINEAGE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("LINEAGE_OTEL_SERVICE_NAME", "lineage"),
		OTelServiceVersion: getEnv("LINEAGE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("LINEAGE_OTEL_INSECURE", true),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case "memory":
	case "filesystem":
		if c.Storage.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem storage")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, filesystem, sqlite, or postgres)", c.Storage.Type)
	}
	if c.Storage.CacheEnabled && c.Storage.L1CacheSize <= 0 {
		return fmt.Errorf("L1 cache size must be positive when caching is enabled")
	}

	// Validate auth config
	if !c.Auth.Disabled && c.Auth.TokensFile == "" && len(c.Auth.AnonymousReaders) == 0 {
		return fmt.Errorf("a tokens file or anonymous readers are required unless auth is disabled")
	}

	// Validate rate limit config
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit requests and window must be positive")
		}
		if c.RateLimit.Burst < 0 {
			return fmt.Errorf("rate limit burst must not be negative")
		}
		if c.RateLimit.Distributed && c.Storage.RedisURL == "" {
			return fmt.Errorf("distributed rate limiting requires a Redis URL")
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated environment variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
