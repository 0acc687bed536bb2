package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/lineage/pkg/contextkeys"
	"github.com/platinummonkey/lineage/pkg/httputil"
	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// AuthMiddleware maps bearer tokens to visibility filters
type AuthMiddleware struct {
	tokens *visibility.TokenStore
	// anonymous, when set, is the filter for requests without a token
	anonymous *visibility.Filter
}

// NewAuthMiddleware creates a new authentication middleware. A nil anonymous
// filter makes a token mandatory.
func NewAuthMiddleware(tokens *visibility.TokenStore, anonymous *visibility.Filter) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:    tokens,
		anonymous: anonymous,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.anonymous != nil {
				ctx := contextkeys.WithFilter(r.Context(), *m.anonymous)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		grant, err := m.tokens.Lookup(strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid token")
			return
		}

		ctx := contextkeys.WithGrant(r.Context(), grant)
		ctx = contextkeys.WithFilter(ctx, grant.Filter())
		if grant.User != "" {
			ctx = observability.WithUserID(ctx, grant.User)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireFilter rejects requests that reached a handler without a filter
func RequireFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := contextkeys.GetFilter(r.Context()); !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
