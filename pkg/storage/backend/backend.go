// Package backend opens the record store named by a storage.Config and wraps
// it with the record cache.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/storage/postgres"
	"github.com/platinummonkey/lineage/pkg/storage/sqlite"
)

// Backend is an opened store plus the pieces the server wires separately
type Backend struct {
	storage.Storage

	// Writer is nil for read-only backends
	Writer storage.Writer
	// FS is set for the filesystem backend
	FS *storage.FileSystemStorage
	// Postgres is set for the postgres backend
	Postgres *postgres.PostgresStorage
	// Redis is the L2 record cache, when configured
	Redis *postgres.RedisClient

	closers []func() error
}

// Open opens the configured store. metrics may be nil.
func Open(ctx context.Context, cfg storage.Config, logger *observability.Logger, metrics *observability.Metrics) (*Backend, error) {
	b := &Backend{}

	switch cfg.Type {
	case "", "memory":
		mem := storage.NewMemoryStorage()
		if cfg.FixturePath != "" {
			if err := storage.LoadFixtureFile(ctx, mem, cfg.FixturePath); err != nil {
				return nil, err
			}
		}
		logger.Infof("Memory store loaded with %d records", mem.Len())
		b.Storage, b.Writer = mem, mem

	case "filesystem":
		fs, err := storage.NewFileSystemStorage(cfg.FilesystemRoot)
		if err != nil {
			return nil, err
		}
		fs.OnReload = func(records int, err error) {
			if err != nil {
				logger.WithError(err).Warn("Fixture reload failed")
			} else {
				logger.Infof("Fixtures reloaded, %d records", records)
			}
			if metrics != nil {
				metrics.RecordReload(records, err)
			}
		}
		logger.Infof("Filesystem store loaded %d records from %s", fs.Len(), cfg.FilesystemRoot)
		b.Storage, b.FS = fs, fs

	case "sqlite":
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if metrics != nil {
			store.SetObserver(metrics)
		}
		if cfg.FixturePath != "" {
			if err := storage.LoadFixtureFile(ctx, store, cfg.FixturePath); err != nil {
				store.Close()
				return nil, err
			}
		}
		logger.Infof("SQLite store opened at %s", cfg.SQLitePath)
		b.Storage, b.Writer = store, store

	case "postgres":
		store, err := postgres.NewPostgresStorage(cfg, logger)
		if err != nil {
			return nil, err
		}
		if metrics != nil {
			store.SetObserver(metrics)
		}
		logger.Info("PostgreSQL store connected")
		b.Storage, b.Writer, b.Postgres = store, store, store

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	b.closers = append(b.closers, b.Storage.Close)

	if !cfg.CacheEnabled {
		return b, nil
	}

	var l2 storage.RecordCache
	if cfg.RedisURL != "" {
		redis, err := postgres.NewRedisClient(cfg)
		if err != nil {
			// Redis is optional; run with the L1 cache only
			logger.WithError(err).Warn("Redis cache unavailable, continuing without it")
		} else {
			b.Redis, l2 = redis, redis
			b.closers = append(b.closers, redis.Close)
		}
	}

	cached := storage.NewCachedStorage(b.Storage, cfg.L1CacheSize, l1TTL(cfg), l2)
	if metrics != nil {
		cached.SetObserver(metrics)
	}
	if b.Writer != nil {
		b.Writer = cached
	}
	if b.FS != nil {
		onReload := b.FS.OnReload
		b.FS.OnReload = func(records int, err error) {
			if err == nil {
				if perr := cached.Purge(context.Background()); perr != nil {
					logger.WithError(perr).Warn("Cache purge after reload failed")
				}
			}
			onReload(records, err)
		}
	}
	b.Storage = cached
	return b, nil
}

// StartBackground runs the filesystem watcher and the replica monitor when
// the backend has them. Both stop when ctx is cancelled.
func (b *Backend) StartBackground(ctx context.Context, logger *observability.Logger) {
	if b.FS != nil {
		go func() {
			defer observability.RecoverPanic(logger, "fixture watcher")
			if err := b.FS.Watch(ctx); err != nil {
				logger.WithError(err).Error("Fixture watcher stopped")
			}
		}()
	}
	if b.Postgres != nil {
		b.Postgres.StartReplicaMonitor(ctx, 30*time.Second)
	}
}

// Dependencies returns health probes for the store and the optional cache
func (b *Backend) Dependencies() []observability.Dependency {
	deps := []observability.Dependency{{Name: "store", Probe: b.Storage.HealthCheck}}
	if b.Redis != nil {
		deps = append(deps, observability.Dependency{Name: "redis", Probe: b.Redis.Ping, Optional: true})
	}
	return deps
}

// Collectors returns Prometheus collectors for the store's internals. Only
// the postgres backend has any: its connection pools.
func (b *Backend) Collectors() []prometheus.Collector {
	if b.Postgres == nil {
		return nil
	}
	return []prometheus.Collector{b.Postgres.Connections().Collector()}
}

// Close closes the cache and the store
func (b *Backend) Close() error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func l1TTL(cfg storage.Config) time.Duration {
	if ttl, ok := cfg.CacheTTL["object_l1"]; ok && ttl > 0 {
		return ttl
	}
	return 30 * time.Second
}
