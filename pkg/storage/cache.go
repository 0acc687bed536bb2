package storage

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/lineage/pkg/visibility"
)

// RecordCache is a second level cache of records keyed by uuid. A miss is
// (nil, nil).
type RecordCache interface {
	GetRecord(ctx context.Context, uuid string) (Record, error)
	SetRecord(ctx context.Context, rec Record) error
	InvalidateRecord(ctx context.Context, uuid string) error
	PurgeRecords(ctx context.Context) error
}

// ErrReadOnly is returned by Put on a cache over a backend that cannot be
// written
var ErrReadOnly = errors.New("storage: backend is read-only")

// CacheObserver receives cache hit/miss notifications
type CacheObserver interface {
	CacheHit(layer string)
	CacheMiss(layer string)
}

// CachedStorage caches object-by-id lookups in front of another backend.
// Cached records are stored unfiltered and the visibility filter is applied
// again on every hit. Locator, job and link queries always go to the backend.
//
// Entries outlive a single traversal, so a change made behind the cache's
// back (ownership, trashing) is only seen once the entry expires. Writes
// through Put and calls to Purge drop the affected entries at once. The
// cache is off unless Config.CacheEnabled is set.
type CachedStorage struct {
	Storage

	l1       *lru.LRU[string, Record]
	l2       RecordCache
	observer CacheObserver
}

// NewCachedStorage wraps backend with an L1 LRU of size entries and ttl, and
// an optional L2 cache.
func NewCachedStorage(backend Storage, size int, ttl time.Duration, l2 RecordCache) *CachedStorage {
	if size <= 0 {
		size = 1000
	}
	return &CachedStorage{
		Storage: backend,
		l1:      lru.NewLRU[string, Record](size, nil, ttl),
		l2:      l2,
	}
}

// SetObserver installs a hit/miss observer
func (c *CachedStorage) SetObserver(o CacheObserver) {
	c.observer = o
}

// GetObject implements ObjectReader
func (c *CachedStorage) GetObject(ctx context.Context, f visibility.Filter, uuid string) (Record, error) {
	if rec, ok := c.l1.Get(uuid); ok {
		c.hit("l1")
		return permitted(f, rec)
	}
	c.miss("l1")

	if c.l2 != nil {
		if rec, err := c.l2.GetRecord(ctx, uuid); err == nil && rec != nil {
			c.hit("l2")
			c.l1.Add(uuid, rec)
			return permitted(f, rec)
		}
		c.miss("l2")
	}

	rec, err := c.Storage.GetObject(ctx, f, uuid)
	if err != nil {
		return nil, err
	}

	c.l1.Add(uuid, rec.Clone())
	if c.l2 != nil {
		// L2 write failures only cost a future miss
		_ = c.l2.SetRecord(ctx, rec)
	}
	return rec, nil
}

// Put writes rec to the backend and drops any cached copy
func (c *CachedStorage) Put(ctx context.Context, rec Record) error {
	w, ok := c.Storage.(Writer)
	if !ok {
		return ErrReadOnly
	}
	if err := w.Put(ctx, rec); err != nil {
		return err
	}
	return c.Invalidate(ctx, rec.UUID())
}

// Invalidate drops one record from both levels
func (c *CachedStorage) Invalidate(ctx context.Context, uuid string) error {
	c.l1.Remove(uuid)
	if c.l2 != nil {
		return c.l2.InvalidateRecord(ctx, uuid)
	}
	return nil
}

// Purge drops every entry from both levels
func (c *CachedStorage) Purge(ctx context.Context) error {
	c.l1.Purge()
	if c.l2 != nil {
		return c.l2.PurgeRecords(ctx)
	}
	return nil
}

func (c *CachedStorage) hit(layer string) {
	if c.observer != nil {
		c.observer.CacheHit(layer)
	}
}

func (c *CachedStorage) miss(layer string) {
	if c.observer != nil {
		c.observer.CacheMiss(layer)
	}
}

func permitted(f visibility.Filter, rec Record) (Record, error) {
	if !readable(f, rec) {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}
