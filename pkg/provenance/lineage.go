package provenance

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// ErrInvalidEntity is returned for a root with neither a locator nor an
// object id
var ErrInvalidEntity = errors.New("lineage: entity has neither a content locator nor an object id")

// Entity is a traversal root. Either field may be empty, not both.
type Entity struct {
	Locator string `json:"portable_data_hash,omitempty"`
	ID      string `json:"uuid,omitempty"`
}

// ParseEntity builds a root from a single content locator or object id
func ParseEntity(raw string) (Entity, error) {
	id, ok := locator.ParseIdentifier(raw)
	switch {
	case !ok:
		return Entity{}, ErrInvalidEntity
	case id.Locator != "":
		return Entity{Locator: id.Locator}, nil
	default:
		return Entity{ID: id.ObjectID}, nil
	}
}

// EntityFromRecord returns the root for a stored record: its uuid, plus its
// portable data hash for collections
func EntityFromRecord(rec storage.Record) Entity {
	return Entity{Locator: rec.PortableDataHash(), ID: rec.UUID()}
}

// IsZero reports whether the entity names nothing
func (e Entity) IsZero() bool {
	return e.Locator == "" && e.ID == ""
}

func (e Entity) String() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Locator
}

// Tracker answers ancestor and descendant queries. It holds no traversal
// state between calls and is safe for concurrent use.
type Tracker struct {
	resolver *Resolver
	scanner  *Scanner
	logger   *observability.Logger
	recorder observability.TraversalRecorder
	tracer   trace.Tracer
}

// Option configures a Tracker
type Option func(*Tracker)

// WithLogger sets the logger. Visits are logged at debug level.
func WithLogger(logger *observability.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithRecorder reports every traversal to r
func WithRecorder(r observability.TraversalRecorder) Option {
	return func(t *Tracker) { t.recorder = r }
}

// WithTracer overrides the global tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(t *Tracker) { t.tracer = tracer }
}

// WithExcludedFields replaces the fields the reference scanner skips
func WithExcludedFields(fields ...string) Option {
	return func(t *Tracker) { t.scanner = NewScanner(fields...) }
}

// NewTracker creates a tracker reading from store
func NewTracker(store storage.Storage, opts ...Option) *Tracker {
	t := &Tracker{
		resolver: NewResolver(store),
		scanner:  NewScanner(DefaultExcludedFields...),
		logger:   observability.NewLogger(observability.InfoLevel, io.Discard),
		tracer:   observability.Tracer(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Resolver returns the tracker's resolver
func (t *Tracker) Resolver() *Resolver {
	return t.resolver
}

// Ancestors returns everything upstream of e: its locator is walked first,
// then its id
func (t *Tracker) Ancestors(ctx context.Context, f visibility.Filter, e Entity) (Visited, error) {
	return t.traverse(ctx, f, Upstream, e, e.Locator, e.ID)
}

// Descendants returns everything downstream of e: its id is walked first,
// then its locator
func (t *Tracker) Descendants(ctx context.Context, f visibility.Filter, e Entity) (Visited, error) {
	return t.traverse(ctx, f, Downstream, e, e.ID, e.Locator)
}

// Walk runs one traversal from the given seeds in order
func (t *Tracker) Walk(ctx context.Context, f visibility.Filter, dir Direction, seeds ...string) (Visited, error) {
	logger := observability.UpdateLoggerWithTraceContext(ctx, t.logger)
	tr := newTraversal(ctx, f, dir, t.resolver, t.scanner, logger)
	for i := len(seeds) - 1; i >= 0; i-- {
		tr.stack = append(tr.stack, walkItem(seeds[i]))
	}
	if err := tr.run(); err != nil {
		return nil, err
	}
	return tr.visited, nil
}

func (t *Tracker) traverse(ctx context.Context, f visibility.Filter, dir Direction, e Entity, seeds ...string) (Visited, error) {
	if e.IsZero() {
		return nil, ErrInvalidEntity
	}

	ctx, span := t.tracer.Start(ctx, spanName(dir), trace.WithAttributes(
		attribute.String("lineage.root", e.String()),
		attribute.String("lineage.direction", dir.String()),
	))
	defer span.End()
	logger := observability.UpdateLoggerWithTraceContext(ctx, t.logger)

	start := time.Now()
	visited, err := t.Walk(ctx, f, dir, seeds...)
	duration := time.Since(start)

	if t.recorder != nil {
		t.recorder.RecordTraversal(ctx, dir.String(), len(visited), duration, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithError(err).WithField("root", e.String()).Warnf("%s traversal failed", dir)
		return nil, err
	}

	span.SetAttributes(attribute.Int("lineage.nodes", len(visited)))
	logger.WithFields(map[string]interface{}{
		"root":        e.String(),
		"direction":   dir.String(),
		"nodes":       len(visited),
		"duration_ms": duration.Milliseconds(),
	}).Debug("traversal complete")
	return visited, nil
}

func spanName(dir Direction) string {
	if dir == Downstream {
		return "lineage.descendants"
	}
	return "lineage.ancestors"
}
