package provenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// Resolver looks up records for identifiers. Every lookup takes the caller's
// filter; nothing the filter denies is ever returned.
type Resolver struct {
	store storage.Storage
}

// NewResolver creates a resolver over store
func NewResolver(store storage.Storage) *Resolver {
	return &Resolver{store: store}
}

// ResolveLocator returns every readable collection whose portable data hash
// is canonical, in store order
func (r *Resolver) ResolveLocator(ctx context.Context, f visibility.Filter, canonical string) ([]storage.Record, error) {
	recs, err := r.store.CollectionsByLocator(ctx, f, canonical)
	if err != nil {
		return nil, fmt.Errorf("lineage: resolve %s: %w", canonical, err)
	}
	return recs, nil
}

// LocatorNode resolves canonical and collapses multiple matches. It reports
// false when nothing readable matches.
func (r *Resolver) LocatorNode(ctx context.Context, f visibility.Filter, canonical string) (Node, bool, error) {
	recs, err := r.ResolveLocator(ctx, f, canonical)
	if err != nil {
		return Node{}, false, err
	}
	node, ok := Collapse(canonical, recs)
	return node, ok, nil
}

// ResolveObject returns the readable record with the given object id. A
// missing or hidden record reports false without an error.
func (r *Resolver) ResolveObject(ctx context.Context, f visibility.Filter, id string) (storage.Record, bool, error) {
	rec, err := r.store.GetObject(ctx, f, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lineage: resolve %s: %w", id, err)
	}
	return rec, true, nil
}

// Classify returns the resource kind of an object id without a store lookup
func (r *Resolver) Classify(id string) locator.Kind {
	return locator.Classify(id)
}

// Jobs returns the uuids of readable jobs matching any of queries, in query
// then store order, without duplicates
func (r *Resolver) Jobs(ctx context.Context, f visibility.Filter, queries ...storage.JobQuery) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, q := range queries {
		jobs, err := r.store.FindJobs(ctx, f, q)
		if err != nil {
			return nil, fmt.Errorf("lineage: find jobs by %s: %w", q.Field, err)
		}
		for _, job := range jobs {
			id := job.UUID()
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Links returns readable provenance links with the given end at id
func (r *Resolver) Links(ctx context.Context, f visibility.Filter, end storage.LinkEnd, id string) ([]storage.Link, error) {
	links, err := r.store.ProvenanceLinks(ctx, f, end, id)
	if err != nil {
		return nil, fmt.Errorf("lineage: links by %s %s: %w", end, id, err)
	}
	return links, nil
}

// Collapse turns the collections matching one locator into a node. One match
// is used as is. Several become a Summary labelled "<name> + <N-1> more"
// after the first named match, or with the locator itself when none is
// named.
func Collapse(canonical string, recs []storage.Record) (Node, bool) {
	switch len(recs) {
	case 0:
		return Node{}, false
	case 1:
		return RecordNode(recs[0]), true
	}

	pdh := recs[0].PortableDataHash()
	if pdh == "" {
		pdh = canonical
	}
	for _, rec := range recs {
		if name := rec.Name(); name != "" {
			return SummaryNode(pdh, fmt.Sprintf("%s + %d more", name, len(recs)-1)), true
		}
	}
	return SummaryNode(pdh, canonical), true
}
