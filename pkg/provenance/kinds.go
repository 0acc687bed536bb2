package provenance

import (
	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/storage"
)

// expander discovers the edges leaving one kind of object. It reports false
// when the object is missing or hidden.
type expander interface {
	expand(t *traversal, id string) ([]workItem, bool, error)
}

// expanders is the complete set of kinds with edge rules. A new kind needs an
// entry here; until then it is a leaf.
var expanders = map[locator.Kind]expander{
	locator.KindJob:        jobExpander{},
	locator.KindCollection: collectionExpander{},
	locator.KindOther:      leafExpander{},
}

func expanderFor(kind locator.Kind) expander {
	if e, ok := expanders[kind]; ok {
		return e
	}
	return leafExpander{}
}

// jobExpander: upstream to everything the job references, downstream to its
// output
type jobExpander struct{}

func (jobExpander) expand(t *traversal, id string) ([]workItem, bool, error) {
	job, found, err := t.resolver.ResolveObject(t.ctx, t.filter, id)
	if err != nil || !found {
		return nil, false, err
	}
	t.visited[id] = RecordNode(job)

	var next []workItem
	if t.direction == Upstream {
		for ref := range t.scanner.Scan(job) {
			next = append(next, walkItem(ref.String()))
		}
	} else {
		next = append(next, walkItem(job.String(storage.FieldOutput)))
	}
	return next, true, nil
}

// collectionExpander folds a collection into its locator: the locator is
// walked first, then the record replaces whatever the locator resolved to
type collectionExpander struct{}

func (collectionExpander) expand(t *traversal, id string) ([]workItem, bool, error) {
	coll, found, err := t.resolver.ResolveObject(t.ctx, t.filter, id)
	if err != nil || !found {
		return nil, false, err
	}

	pdh := coll.PortableDataHash()
	canonical, ok := locator.Canonicalize(pdh)
	if !ok {
		t.logger.Debugf("collection %s has no valid portable_data_hash", id)
		return nil, true, nil
	}
	return []workItem{walkItem(pdh), {id: canonical, record: coll}}, true, nil
}

// leafExpander records the object and stops
type leafExpander struct{}

func (leafExpander) expand(t *traversal, id string) ([]workItem, bool, error) {
	rec, found, err := t.resolver.ResolveObject(t.ctx, t.filter, id)
	if err != nil || !found {
		return nil, false, err
	}
	t.visited[id] = RecordNode(rec)
	return nil, true, nil
}
