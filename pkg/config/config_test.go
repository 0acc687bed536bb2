package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	t.Setenv("LINEAGE_TEST_VAR", "custom")

	assert.Equal(t, "custom", getEnv("LINEAGE_TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("LINEAGE_TEST_VAR_NOT_SET", "default"))
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true", "true", false, true},
		{"upper case TRUE", "TRUE", false, true},
		{"one", "1", false, true},
		{"false", "false", true, false},
		{"anything else", "yes", true, false},
		{"unset uses default", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LINEAGE_TEST_BOOL", tt.envValue)
			assert.Equal(t, tt.want, getEnvBool("LINEAGE_TEST_BOOL", tt.defaultValue))
		})
	}
}

// TestGetEnvInt tests the getEnvInt helper function
func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int
	}{
		{"valid", "42", 42},
		{"negative", "-1", -1},
		{"invalid uses default", "forty", 7},
		{"unset uses default", "", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LINEAGE_TEST_INT", tt.envValue)
			assert.Equal(t, tt.want, getEnvInt("LINEAGE_TEST_INT", 7))
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{"seconds", "45s", 45 * time.Second},
		{"compound", "1m30s", 90 * time.Second},
		{"invalid uses default", "soon", time.Minute},
		{"unset uses default", "", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LINEAGE_TEST_DURATION", tt.envValue)
			assert.Equal(t, tt.want, getEnvDuration("LINEAGE_TEST_DURATION", time.Minute))
		})
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("LINEAGE_TEST_LIST", " a, b ,,c ")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("LINEAGE_TEST_LIST"))

	t.Setenv("LINEAGE_TEST_LIST", "")
	assert.Nil(t, getEnvList("LINEAGE_TEST_LIST"))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("LINEAGE_AUTH_DISABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.False(t, cfg.Storage.CacheEnabled)
	assert.True(t, cfg.Storage.WatchFiles)
	assert.Equal(t, 10000, cfg.Storage.L1CacheSize)

	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 20, cfg.RateLimit.Burst)

	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTelEnabled)
	assert.Equal(t, "lineage", cfg.Observability.OTelServiceName)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	env := map[string]string{
		"LINEAGE_PORT":                   "8000",
		"LINEAGE_HEALTH_PORT":            "8001",
		"LINEAGE_REQUEST_TIMEOUT":        "5s",
		"LINEAGE_CORS_ORIGINS":           "https://workbench.example.com, https://admin.example.com",
		"LINEAGE_STORAGE_TYPE":           "postgres",
		"LINEAGE_POSTGRES_URL":           "postgres://lineage@db/lineage",
		"LINEAGE_POSTGRES_REPLICA_URLS":  "postgres://lineage@replica/lineage",
		"LINEAGE_POSTGRES_MAX_CONNS":     "50",
		"LINEAGE_POSTGRES_MIGRATE":       "true",
		"LINEAGE_REDIS_URL":              "redis:6379",
		"LINEAGE_REDIS_DB":               "2",
		"LINEAGE_CACHE_TTL":              "10m",
		"LINEAGE_L1_CACHE_TTL":           "5s",
		"LINEAGE_L1_CACHE_SIZE":          "500",
		"LINEAGE_TOKENS_FILE":            "/etc/lineage/tokens.yaml",
		"LINEAGE_ANONYMOUS_READERS":      "zzzzz-j7d0g-anonymouspublic",
		"LINEAGE_RATE_LIMIT_REQUESTS":    "10",
		"LINEAGE_RATE_LIMIT_WINDOW":      "1s",
		"LINEAGE_RATE_LIMIT_BURST":       "0",
		"LINEAGE_RATE_LIMIT_DISTRIBUTED": "true",
		"LINEAGE_LOG_LEVEL":              "debug",
		"LINEAGE_OTEL_ENABLED":           "true",
		"LINEAGE_OTEL_ENDPOINT":          "collector:4317",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"https://workbench.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "postgres://lineage@db/lineage", cfg.Storage.PostgresURL)
	assert.Equal(t, "postgres://lineage@replica/lineage", cfg.Storage.PostgresReplicaURLs)
	assert.Equal(t, 50, cfg.Storage.PostgresMaxConns)
	assert.True(t, cfg.Storage.PostgresMigrate)
	assert.Equal(t, "redis:6379", cfg.Storage.RedisURL)
	assert.Equal(t, 2, cfg.Storage.RedisDB)
	assert.Equal(t, 10*time.Minute, cfg.Storage.CacheTTL["object"])
	assert.Equal(t, 5*time.Second, cfg.Storage.CacheTTL["object_l1"])
	assert.Equal(t, 500, cfg.Storage.L1CacheSize)

	assert.Equal(t, "/etc/lineage/tokens.yaml", cfg.Auth.TokensFile)
	assert.Equal(t, []string{"zzzzz-j7d0g-anonymouspublic"}, cfg.Auth.AnonymousReaders)

	limits := cfg.RateLimit.Limits()
	assert.Equal(t, 10, limits.RequestsPerWindow)
	assert.Equal(t, time.Second, limits.WindowDuration)
	assert.Equal(t, 0, limits.BurstSize)
	assert.True(t, cfg.RateLimit.Distributed)

	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	otel := cfg.Observability.OTel()
	assert.True(t, otel.Enabled)
	assert.Equal(t, "collector:4317", otel.Endpoint)
	assert.Equal(t, "lineage", otel.ServiceName)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("LINEAGE_STORAGE_TYPE", "s3")
	t.Setenv("LINEAGE_AUTH_DISABLED", "true")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid storage type")
}

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: "8080", HealthPort: "9090"},
		Storage: storage.DefaultConfig(),
		Auth:    AuthConfig{TokensFile: "tokens.yaml"},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 10,
			Window:            time.Minute,
		},
		Observability: ObservabilityConfig{LogLevel: observability.InfoLevel},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port is required"},
		{name: "missing health port", mutate: func(c *Config) { c.Server.HealthPort = "" }, wantErr: "health port is required"},
		{name: "same ports", mutate: func(c *Config) { c.Server.HealthPort = "8080" }, wantErr: "must be different"},
		{name: "negative request timeout", mutate: func(c *Config) { c.Server.RequestTimeout = -time.Second }, wantErr: "request timeout"},
		{name: "filesystem without root", mutate: func(c *Config) {
			c.Storage.Type = "filesystem"
			c.Storage.FilesystemRoot = ""
		}, wantErr: "filesystem root is required"},
		{name: "sqlite without path", mutate: func(c *Config) {
			c.Storage.Type = "sqlite"
			c.Storage.SQLitePath = ""
		}, wantErr: "sqlite path is required"},
		{name: "postgres without url", mutate: func(c *Config) { c.Storage.Type = "postgres" }, wantErr: "postgres URL is required"},
		{name: "postgres", mutate: func(c *Config) {
			c.Storage.Type = "postgres"
			c.Storage.PostgresURL = "postgres://localhost/lineage"
		}},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "hybrid" }, wantErr: "invalid storage type"},
		{name: "cache without size", mutate: func(c *Config) { c.Storage.L1CacheSize = 0 }, wantErr: "L1 cache size"},
		{name: "no cache without size", mutate: func(c *Config) {
			c.Storage.CacheEnabled = false
			c.Storage.L1CacheSize = 0
		}},
		{name: "no credentials", mutate: func(c *Config) { c.Auth = AuthConfig{} }, wantErr: "tokens file"},
		{name: "anonymous only", mutate: func(c *Config) { c.Auth = AuthConfig{AnonymousReaders: []string{"zzzzz-j7d0g-anonymouspublic"}} }},
		{name: "auth disabled", mutate: func(c *Config) { c.Auth = AuthConfig{Disabled: true} }},
		{name: "zero rate", mutate: func(c *Config) { c.RateLimit.RequestsPerWindow = 0 }, wantErr: "must be positive"},
		{name: "zero rate while disabled", mutate: func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.RequestsPerWindow = 0
		}},
		{name: "negative burst", mutate: func(c *Config) { c.RateLimit.Burst = -1 }, wantErr: "burst"},
		{name: "distributed without redis", mutate: func(c *Config) { c.RateLimit.Distributed = true }, wantErr: "requires a Redis URL"},
		{name: "otel without endpoint", mutate: func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = "lineage"
		}, wantErr: "endpoint is required"},
		{name: "otel without service name", mutate: func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = "localhost:4317"
		}, wantErr: "service name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAuthConfig_AnonymousFilter(t *testing.T) {
	assert.Nil(t, AuthConfig{TokensFile: "tokens.yaml"}.AnonymousFilter())

	f := AuthConfig{Disabled: true, AnonymousReaders: []string{"zzzzz-j7d0g-anonymouspublic"}}.AnonymousFilter()
	require.NotNil(t, f)
	assert.Equal(t, visibility.AllowAll(), *f)

	f = AuthConfig{AnonymousReaders: []string{"b", "a", "a"}}.AnonymousFilter()
	require.NotNil(t, f)
	assert.Equal(t, []string{"a", "b"}, f.Readers)
	assert.False(t, f.Admin)
}
