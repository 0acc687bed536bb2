package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/lineage/pkg/httputil"
	"github.com/platinummonkey/lineage/pkg/middleware"
	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/provenance"
	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// Options configures the API server. Store is required.
type Options struct {
	Store storage.Storage

	// Tokens maps bearer tokens to grants. Nil accepts no tokens.
	Tokens *visibility.TokenStore
	// Anonymous is the filter for requests without a token. Nil rejects them.
	Anonymous *visibility.Filter

	// Limiter throttles lineage queries. Nil disables rate limiting.
	Limiter middleware.Limiter
	// Metrics instruments requests and traversals. Nil disables both.
	Metrics *observability.Metrics
	// Recorders also receive every traversal, e.g. OTel instruments
	Recorders observability.Recorders

	Logger         *observability.Logger
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	tracker *provenance.Tracker
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = visibility.NewTokenStore()
	}

	recorders := opts.Recorders
	if opts.Metrics != nil {
		recorders = append(observability.Recorders{opts.Metrics}, recorders...)
	}
	trackerOpts := []provenance.Option{provenance.WithLogger(logger)}
	if len(recorders) > 0 {
		trackerOpts = append(trackerOpts, provenance.WithRecorder(recorders))
	}

	s := &Server{
		router:  mux.NewRouter(),
		tracker: provenance.NewTracker(opts.Store, trackerOpts...),
	}

	// Route level middleware sees the matched route template
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	s.router.Use(httputil.TimeoutMiddleware(opts.RequestTimeout))
	s.router.Use(middleware.NewAuthMiddleware(tokens, opts.Anonymous).Handler)
	if opts.Limiter != nil {
		s.router.Use(middleware.NewRateLimitMiddleware(opts.Limiter, logger).Handler)
	}

	s.setupRoutes()

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(opts.CORSOrigins),
	)(s.router)

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.RegisterRoutes(provenance.NewHandlers(s.tracker))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Tracker returns the tracker behind the lineage routes
func (s *Server) Tracker() *provenance.Tracker {
	return s.tracker
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// NewHealthRouter serves health probes and, when gatherer is set, /metrics.
// It runs on its own port and is never authenticated.
func NewHealthRouter(checker *observability.HealthChecker, gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()
	observability.RegisterHealthRoutes(router, checker)
	if gatherer != nil {
		router.Handle("/metrics", observability.MetricsHandler(gatherer)).Methods(http.MethodGet)
	}
	return router
}
