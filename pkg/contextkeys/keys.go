// Package contextkeys provides centralized context key definitions
//
// All context keys shared between packages are defined here so that the
// setter and the readers agree on the key and the value type.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithFilter(ctx, grant.Filter())
//	filter, ok := contextkeys.GetFilter(ctx)
package contextkeys

import (
	"context"

	"github.com/platinummonkey/lineage/pkg/visibility"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// FilterKey contains the caller's visibility.Filter
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: lineage handlers, which pass it explicitly to the tracker
	// Type: visibility.Filter
	FilterKey Key = "visibility_filter"

	// GrantKey contains the visibility.Grant the request authenticated with
	// Set by: middleware.AuthMiddleware
	// Used by: rate limiting
	// Type: visibility.Grant
	GrantKey Key = "grant"
)

// WithFilter adds a visibility filter to the context
func WithFilter(ctx context.Context, f visibility.Filter) context.Context {
	return context.WithValue(ctx, FilterKey, f)
}

// GetFilter retrieves the visibility filter from context
func GetFilter(ctx context.Context) (visibility.Filter, bool) {
	f, ok := ctx.Value(FilterKey).(visibility.Filter)
	return f, ok
}

// WithGrant adds the authenticated grant to the context
func WithGrant(ctx context.Context, g visibility.Grant) context.Context {
	return context.WithValue(ctx, GrantKey, g)
}

// GetGrant retrieves the authenticated grant from context
func GetGrant(ctx context.Context) (visibility.Grant, bool) {
	g, ok := ctx.Value(GrantKey).(visibility.Grant)
	return g, ok
}
