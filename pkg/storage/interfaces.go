package storage

import (
	"context"
	"time"

	"github.com/platinummonkey/lineage/pkg/visibility"
)

// ObjectReader reads single records by object id
type ObjectReader interface {
	// GetObject returns the record with the given object id. It returns
	// ErrNotFound when the record is absent, trashed, or not permitted by f.
	GetObject(ctx context.Context, f visibility.Filter, uuid string) (Record, error)
}

// CollectionReader reads collections by content identity
type CollectionReader interface {
	// CollectionsByLocator returns every readable, untrashed collection whose
	// portable_data_hash equals the canonical locator, in deterministic order.
	CollectionsByLocator(ctx context.Context, f visibility.Filter, pdh string) ([]Record, error)
}

// JobReader reads jobs by field predicate
type JobReader interface {
	FindJobs(ctx context.Context, f visibility.Filter, q JobQuery) ([]Record, error)
}

// LinkReader reads explicit provenance links
type LinkReader interface {
	// ProvenanceLinks returns readable links of class "provenance" whose
	// head_uuid (LinkHead) or tail_uuid (LinkTail) equals uuid.
	ProvenanceLinks(ctx context.Context, f visibility.Filter, end LinkEnd, uuid string) ([]Link, error)
}

// HealthChecker reports backend health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Storage is everything the lineage walker reads
type Storage interface {
	ObjectReader
	CollectionReader
	JobReader
	LinkReader
	HealthChecker

	Close() error
}

// Writer populates a store. The resource is selected by the record's uuid
// type code.
type Writer interface {
	Put(ctx context.Context, rec Record) error
}

// Config for storage backend
type Config struct {
	Type string // "memory", "filesystem", "sqlite", "postgres"

	// Memory config
	FixturePath string

	// Filesystem config
	FilesystemRoot string
	WatchFiles     bool

	// SQLite config
	SQLitePath string

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string // Comma-separated list of replica URLs
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration
	PostgresMigrate     bool

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache config. The cache keeps records across traversals, so it is
	// off by default.
	CacheEnabled bool
	CacheTTL     map[string]time.Duration
	L1CacheSize  int // Entries
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "memory",
		FilesystemRoot:   "/tmp/lineage",
		SQLitePath:       "/tmp/lineage.db",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     false,
		CacheTTL: map[string]time.Duration{
			"object":    5 * time.Minute,
			"object_l1": 30 * time.Second,
		},
		L1CacheSize: 10000,
	}
}
