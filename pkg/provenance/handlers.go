package provenance

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/lineage/pkg/contextkeys"
	"github.com/platinummonkey/lineage/pkg/httputil"
	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// Handlers serves lineage queries over HTTP
type Handlers struct {
	tracker *Tracker
}

// NewHandlers creates lineage handlers
func NewHandlers(tracker *Tracker) *Handlers {
	return &Handlers{tracker: tracker}
}

// LineageResponse is the body of the /api/v1 lineage endpoints
type LineageResponse struct {
	Root      Entity   `json:"root"`
	Direction string   `json:"direction"`
	Count     int      `json:"count"`
	Keys      []string `json:"keys"`
	Nodes     Visited  `json:"nodes,omitempty"`
}

// RegisterRoutes registers lineage routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/arvados/v1/collections/{id}/provenance", h.collectionProvenance).Methods("GET")
	router.HandleFunc("/arvados/v1/collections/{id}/used_by", h.collectionUsedBy).Methods("GET")
	router.HandleFunc("/api/v1/lineage/{id}/ancestors", h.ancestors).Methods("GET")
	router.HandleFunc("/api/v1/lineage/{id}/descendants", h.descendants).Methods("GET")
}

// collectionProvenance handles GET /arvados/v1/collections/{id}/provenance
func (h *Handlers) collectionProvenance(w http.ResponseWriter, r *http.Request) {
	h.collectionLineage(w, r, Upstream)
}

// collectionUsedBy handles GET /arvados/v1/collections/{id}/used_by
func (h *Handlers) collectionUsedBy(w http.ResponseWriter, r *http.Request) {
	h.collectionLineage(w, r, Downstream)
}

// collectionLineage answers with the bare visited map
func (h *Handlers) collectionLineage(w http.ResponseWriter, r *http.Request, dir Direction) {
	f, ok := filterOrError(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	root, err := h.findCollection(r.Context(), f, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	visited, err := h.run(r.Context(), f, dir, root)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, visited)
}

// ancestors handles GET /api/v1/lineage/{id}/ancestors
func (h *Handlers) ancestors(w http.ResponseWriter, r *http.Request) {
	h.lineage(w, r, Upstream)
}

// descendants handles GET /api/v1/lineage/{id}/descendants
func (h *Handlers) descendants(w http.ResponseWriter, r *http.Request) {
	h.lineage(w, r, Downstream)
}

func (h *Handlers) lineage(w http.ResponseWriter, r *http.Request, dir Direction) {
	f, ok := filterOrError(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	keysOnly, ok := httputil.ParseQueryBoolOrError(w, r, "keys_only", false)
	if !ok {
		return
	}

	root, err := ParseEntity(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	visited, err := h.run(r.Context(), f, dir, root)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := LineageResponse{
		Root:      root,
		Direction: dir.String(),
		Count:     len(visited),
		Keys:      visited.Keys(),
	}
	if !keysOnly {
		resp.Nodes = visited
	}
	httputil.WriteSuccess(w, resp)
}

func (h *Handlers) run(ctx context.Context, f visibility.Filter, dir Direction, root Entity) (Visited, error) {
	if dir == Downstream {
		return h.tracker.Descendants(ctx, f, root)
	}
	return h.tracker.Ancestors(ctx, f, root)
}

// errNotFound marks a root the caller cannot read
var errNotFound = errors.New("not found")

// findCollection resolves the root of a collection route. A locator names
// the content itself; an object id must be a readable collection.
func (h *Handlers) findCollection(ctx context.Context, f visibility.Filter, id string) (Entity, error) {
	resolver := h.tracker.Resolver()

	if canonical, ok := locator.Canonicalize(id); ok {
		recs, err := resolver.ResolveLocator(ctx, f, canonical)
		if err != nil {
			return Entity{}, err
		}
		if len(recs) == 0 {
			return Entity{}, fmt.Errorf("collection %s: %w", id, errNotFound)
		}
		return Entity{Locator: canonical, ID: canonical}, nil
	}

	if locator.Classify(id) != locator.KindCollection {
		return Entity{}, fmt.Errorf("collection %s: %w", id, errNotFound)
	}
	rec, found, err := resolver.ResolveObject(ctx, f, id)
	if err != nil {
		return Entity{}, err
	}
	if !found {
		return Entity{}, fmt.Errorf("collection %s: %w", id, errNotFound)
	}
	return EntityFromRecord(rec), nil
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidEntity):
		httputil.WriteBadRequest(w, "identifier is neither a content locator nor an object id")
	case errors.Is(err, errNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httputil.WriteGatewayTimeout(w, "lineage query timed out")
	case errors.Is(err, context.Canceled):
		// The client has gone away
	default:
		observability.FromContext(r.Context()).WithError(err).Error("lineage query failed")
		httputil.WriteServiceUnavailable(w, "record store unavailable")
	}
}

func filterOrError(w http.ResponseWriter, r *http.Request) (visibility.Filter, bool) {
	f, ok := contextkeys.GetFilter(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
	}
	return f, ok
}
