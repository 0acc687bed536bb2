package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// MemoryStorage keeps every record in memory. Safe for concurrent use.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]Record)}
}

// Put stores a record, replacing any record with the same uuid
func (s *MemoryStorage) Put(ctx context.Context, rec Record) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UUID()] = rec.Clone()
	return nil
}

// Replace swaps the whole record set atomically
func (s *MemoryStorage) Replace(records map[string]Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

// Len returns the number of stored records
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// GetObject implements ObjectReader
func (s *MemoryStorage) GetObject(ctx context.Context, f visibility.Filter, uuid string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	rec, ok := s.records[uuid]
	s.mu.RUnlock()

	if !ok || !readable(f, rec) {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// CollectionsByLocator implements CollectionReader
func (s *MemoryStorage) CollectionsByLocator(ctx context.Context, f visibility.Filter, pdh string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := s.selectRecords(locator.TypeCollection, func(r Record) bool {
		return r.PortableDataHash() == pdh && readable(f, r)
	})
	SortCollections(matches)
	return matches, nil
}

// FindJobs implements JobReader
func (s *MemoryStorage) FindJobs(ctx context.Context, f visibility.Filter, q JobQuery) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	matches := s.selectRecords(locator.TypeJob, func(r Record) bool {
		return q.Matches(r) && readable(f, r)
	})
	sortByUUID(matches)
	return matches, nil
}

// ProvenanceLinks implements LinkReader
func (s *MemoryStorage) ProvenanceLinks(ctx context.Context, f visibility.Filter, end LinkEnd, uuid string) ([]Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	field := end.String()
	matches := s.selectRecords(locator.TypeLink, func(r Record) bool {
		return r.String(FieldLinkClass) == LinkClassProvenance &&
			r.String(field) == uuid &&
			readable(f, r)
	})
	sortByUUID(matches)

	links := make([]Link, 0, len(matches))
	for _, r := range matches {
		links = append(links, LinkFromRecord(r))
	}
	return links, nil
}

// HealthCheck implements HealthChecker
func (s *MemoryStorage) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Storage
func (s *MemoryStorage) Close() error {
	return nil
}

func (s *MemoryStorage) selectRecords(typeCode string, keep func(Record) bool) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for uuid, rec := range s.records {
		if locator.TypeCode(uuid) != typeCode {
			continue
		}
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// readable applies the visibility filter and hides trashed collections
func readable(f visibility.Filter, r Record) bool {
	if r.Bool(FieldIsTrashed) {
		return false
	}
	return f.Permits(r.OwnerUUID(), r.UUID())
}

// SortCollections orders collections the way every backend must: trash_at
// descending with nulls first, then uuid.
func SortCollections(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		ti, iok := recs[i].Time(FieldTrashAt)
		tj, jok := recs[j].Time(FieldTrashAt)
		switch {
		case !iok && jok:
			return true
		case iok && !jok:
			return false
		case iok && jok && !ti.Equal(tj):
			return ti.After(tj)
		}
		return recs[i].UUID() < recs[j].UUID()
	})
}

func sortByUUID(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].UUID() < recs[j].UUID()
	})
}
