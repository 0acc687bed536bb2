package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/lineage/pkg/api"
	"github.com/platinummonkey/lineage/pkg/config"
	"github.com/platinummonkey/lineage/pkg/middleware"
	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/storage/backend"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lineage: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Observability.OTelServiceVersion == "" {
		cfg.Observability.OTelServiceVersion = version
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	defer observability.RecoverPanic(logger, "main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	var (
		registry  *prometheus.Registry
		metrics   *observability.Metrics
		recorders observability.Recorders
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}
	if providers != nil {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return fmt.Errorf("failed to create OTel instruments: %w", err)
		}
		recorders = append(recorders, otelMetrics)
	}

	b, err := backend.Open(ctx, cfg.Storage, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Type, err)
	}
	b.StartBackground(ctx, logger)
	if registry != nil {
		registry.MustRegister(b.Collectors()...)
	}
	logger.WithField("type", cfg.Storage.Type).Info("Store opened")

	tokens := visibility.NewTokenStore()
	if cfg.Auth.TokensFile != "" {
		if tokens, err = visibility.LoadTokenFile(cfg.Auth.TokensFile); err != nil {
			return fmt.Errorf("failed to load tokens: %w", err)
		}
		logger.Infof("Loaded %d API tokens", tokens.Len())
	}
	if cfg.Auth.Disabled {
		logger.Warn("Authentication is disabled, every request can read every record")
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Options{
		Store:          b,
		Tokens:         tokens,
		Anonymous:      cfg.Auth.AnonymousFilter(),
		Limiter:        limiter,
		Metrics:        metrics,
		Recorders:      recorders,
		Logger:         logger,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	checker := observability.NewHealthChecker(version, b.Dependencies()...)
	var gatherer prometheus.Gatherer
	if registry != nil {
		gatherer = registry
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: api.NewHealthRouter(checker, gatherer),
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, httpServer, healthServer)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		return nil
	})
	if closeLimiter != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return closeLimiter() })
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error { return b.Close() })
	if providers != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	serve(logger, "health", healthServer)
	serve(logger, "API", httpServer)
	logger.Infof("Lineage server %s listening on %s", version, httpServer.Addr)

	return shutdown.WaitForShutdown()
}

// newLimiter builds the configured rate limiter. The returned close function
// is nil unless the limiter holds a Redis connection.
func newLimiter(ctx context.Context, cfg *config.Config, logger *observability.Logger) (middleware.Limiter, func() error, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil, nil
	}

	if cfg.RateLimit.Distributed {
		opts, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis URL for rate limiting: %w", err)
		}
		if cfg.Storage.RedisPassword != "" {
			opts.Password = cfg.Storage.RedisPassword
		}
		client := redis.NewClient(opts)
		logger.Info("Rate limiting through Redis")
		return middleware.NewDistributedRateLimiter(client, cfg.RateLimit.Limits(), "lineage:ratelimit"), client.Close, nil
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Limits())
	limiter.StartCleanup(ctx)
	logger.Info("Rate limiting in process")
	return limiter, nil, nil
}

func serve(logger *observability.Logger, name string, srv *http.Server) {
	go func() {
		defer observability.RecoverPanic(logger, name+" server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Errorf("%s server failed", name)
			os.Exit(1)
		}
	}()
}
