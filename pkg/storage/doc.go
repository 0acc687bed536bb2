// Package storage provides read access to the record store the lineage walker
// discovers its graph from.
//
// # Overview
//
// Lineage is never persisted. Every traversal re-reads collections, jobs,
// links and other records through the interfaces in this package, filtered by
// the caller's visibility.Filter. The package defines those interfaces, the
// record projections they return, and the backends that implement them.
//
// # Architecture
//
// The store is split into focused read capabilities:
//
//   - ObjectReader: one record by object id (GetObject)
//   - CollectionReader: collections by content locator (CollectionsByLocator)
//   - JobReader: jobs by field predicate (FindJobs)
//   - LinkReader: provenance links by head or tail (ProvenanceLinks)
//   - HealthChecker: backend health monitoring (HealthCheck)
//
// These compose into the Storage interface the walker depends on. Backends
// that can be populated (memory, sqlite) also implement Writer.
//
// Every read takes the visibility filter as an explicit argument. A record the
// filter does not permit is indistinguishable from a missing record:
// GetObject returns ErrNotFound and list reads simply leave it out. Any other
// error means the backend itself failed and the caller must abort.
//
// # Backend Implementations
//
// MemoryStorage keeps records in maps. Used for tests and YAML fixtures.
//
//	store := storage.NewMemoryStorage()
//	err := storage.LoadFixtureFile(ctx, store, "testdata/pipeline.yaml")
//
// FileSystemStorage loads a directory of YAML or JSON record files into a
// MemoryStorage and reloads it when files change (fsnotify).
//
//	store, err := storage.NewFileSystemStorage("/var/lineage/records")
//	go store.Watch(ctx)
//
// sqlite.Storage and postgres.PostgresStorage share the SQL in
// pkg/storage/sqlstore. PostgreSQL reads are spread over read replicas.
//
// CachedStorage decorates any backend with an in-process LRU (and optionally
// Redis) cache of object-by-id lookups. Visibility is re-checked on every
// cache hit.
//
// # Ordering
//
// Results are deterministic. Collections sharing a content locator are
// ordered by trash_at descending with nulls first (the copy with the longest
// remaining lifetime comes first), then by uuid. Jobs and links are ordered by
// uuid. Trashed collections are never returned.
//
// # Configuration
//
//	config := storage.DefaultConfig()
//	config.Type = "postgres"
//	config.PostgresURL = "postgres://localhost/lineage"
//	config.RedisURL = "redis://localhost:6379"
package storage
