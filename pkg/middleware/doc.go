// Package middleware provides HTTP middleware for authentication and rate
// limiting.
//
// # Middleware Components
//
// AuthMiddleware: bearer token authentication
//
//	auth := middleware.NewAuthMiddleware(tokens, nil)
//	router.Use(auth.Handler)
//	// Looks the token up in the token file and puts the grant and its
//	// visibility.Filter in the request context
//
// RateLimitMiddleware: per-user limits over any Limiter
//
//	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
//	router.Use(middleware.NewRateLimitMiddleware(limiter, logger).Handler)
//
// DistributedRateLimiter shares the counters between instances through Redis:
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "lineage:ratelimit")
//
// # Rate Limiting
//
// Authenticated requests are keyed by user, anonymous requests by client
// address. Limiter errors fail open.
package middleware
