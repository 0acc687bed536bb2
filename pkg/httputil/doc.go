// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, visited)
//	httputil.WriteBadRequest(w, "invalid identifier")
//	httputil.WriteNotFoundError(w, "collection not found")
//	httputil.WriteInternalError(w, err)
//
// Errors are encoded as {"error": "..."}.
//
// # Request Parsing
//
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//	keysOnly, ok := httputil.ParseQueryBoolOrError(w, r, "keys_only", false)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.TimeoutMiddleware(30*time.Second),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and rate limiting middleware
package httputil
