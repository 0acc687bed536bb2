package provenance

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// Direction is the edge orientation of one traversal
type Direction int

const (
	// Upstream follows edges towards inputs
	Upstream Direction = iota
	// Downstream follows edges towards derived data
	Downstream
)

func (d Direction) String() string {
	if d == Downstream {
		return "downstream"
	}
	return "upstream"
}

// workItem is either an identifier to walk or, when record is set, a record
// to store under id once everything pushed after it has been walked
type workItem struct {
	id     string
	record storage.Record
}

func walkItem(id string) workItem {
	return workItem{id: id}
}

// traversal is the state of one call. It runs depth first on an explicit
// stack; visited is both the result and the guard against revisiting.
type traversal struct {
	ctx       context.Context
	filter    visibility.Filter
	direction Direction
	resolver  *Resolver
	scanner   *Scanner
	logger    *observability.Logger

	visited Visited
	// expanded holds every key whose expansion has started. Collections
	// reached by id are never stored under their id, so visited alone would
	// let a link cycle through collections run forever.
	expanded map[string]struct{}
	stack    []workItem
}

func newTraversal(ctx context.Context, f visibility.Filter, dir Direction, resolver *Resolver, scanner *Scanner, logger *observability.Logger) *traversal {
	return &traversal{
		ctx:       ctx,
		filter:    f,
		direction: dir,
		resolver:  resolver,
		scanner:   scanner,
		logger:    logger,
		visited:   make(Visited),
		expanded:  make(map[string]struct{}),
	}
}

// push schedules items so that items[0] runs next
func (t *traversal) push(items ...workItem) {
	for i := len(items) - 1; i >= 0; i-- {
		t.stack = append(t.stack, items[i])
	}
}

// run drains the stack. A panic in a store or expander fails the traversal
// instead of the process.
func (t *traversal) run() (err error) {
	defer func() {
		if perr := observability.MustRecover(recover()); perr != nil {
			t.logger.WithError(perr).WithField("stack", string(debug.Stack())).Error("traversal panicked")
			err = fmt.Errorf("lineage: traversal aborted: %w", perr)
		}
	}()

	for len(t.stack) > 0 {
		if err := t.ctx.Err(); err != nil {
			return err
		}

		item := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]

		if item.record != nil {
			t.visited[item.id] = RecordNode(item.record)
			continue
		}

		next, err := t.step(item.id)
		if err != nil {
			return err
		}
		t.push(next...)
	}
	return nil
}

// step expands one identifier and returns the identifiers it leads to
func (t *traversal) step(raw string) ([]workItem, error) {
	if raw == "" || t.visited.Has(raw) {
		return nil, nil
	}

	key := raw
	loc, isLocator := locator.Parse(raw)
	if isLocator {
		key = loc.Canonical()
	} else if !locator.IsObjectID(raw) {
		t.logger.Debugf("skipping %q: not a locator or object id", raw)
		return nil, nil
	}
	if t.visited.Has(key) {
		return nil, nil
	}
	if _, ok := t.expanded[key]; ok {
		return nil, nil
	}
	t.expanded[key] = struct{}{}

	t.logger.Debugf("visiting %s", key)

	var (
		next  []workItem
		found bool
		err   error
	)
	if isLocator {
		next, found, err = t.expandLocator(key)
	} else {
		next, found, err = expanderFor(t.resolver.Classify(key)).expand(t, key)
	}
	if err != nil || !found {
		if !found && err == nil {
			t.logger.Debugf("%s: no readable record", key)
		}
		return nil, err
	}

	// The empty collection is never expanded downstream, links included
	if t.direction == Downstream && key == locator.EmptyCollection {
		return next, nil
	}

	linked, err := t.followLinks(key)
	if err != nil {
		return nil, err
	}
	return append(next, linked...), nil
}

func (t *traversal) expandLocator(canonical string) ([]workItem, bool, error) {
	node, found, err := t.resolver.LocatorNode(t.ctx, t.filter, canonical)
	if err != nil {
		return nil, false, err
	}
	// Job outputs, logs and images often have no collection record. The
	// locator gets no node but its jobs and links are still searched.
	if found {
		t.visited[canonical] = node
	} else {
		t.logger.Debugf("%s: no readable collection", canonical)
	}

	var queries []storage.JobQuery
	switch t.direction {
	case Upstream:
		queries = []storage.JobQuery{storage.OutputEquals(canonical), storage.LogEquals(canonical)}
	case Downstream:
		if canonical == locator.EmptyCollection {
			return nil, true, nil
		}
		queries = []storage.JobQuery{storage.ScriptParametersContain(canonical), storage.DockerImageEquals(canonical)}
	}

	jobs, err := t.resolver.Jobs(t.ctx, t.filter, queries...)
	if err != nil {
		return nil, false, err
	}
	next := make([]workItem, 0, len(jobs))
	for _, id := range jobs {
		next = append(next, walkItem(id))
	}
	return next, true, nil
}

// followLinks records the provenance links at id and returns their far ends.
// Upstream walks head to tail, downstream tail to head.
func (t *traversal) followLinks(id string) ([]workItem, error) {
	end := storage.LinkHead
	if t.direction == Downstream {
		end = storage.LinkTail
	}

	links, err := t.resolver.Links(t.ctx, t.filter, end, id)
	if err != nil {
		return nil, err
	}

	var next []workItem
	for _, link := range links {
		if link.UUID == "" || t.visited.Has(link.UUID) {
			continue
		}
		t.visited[link.UUID] = RecordNode(link.Record())
		if t.direction == Upstream {
			next = append(next, walkItem(link.TailUUID))
		} else {
			next = append(next, walkItem(link.HeadUUID))
		}
	}
	return next, nil
}
