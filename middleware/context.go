package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/token"
)

// Context key type to avoid collisions
type contextKey string

const (
	// IdentityKey is the context key for the identity snapshot of the request
	IdentityKey contextKey = "identity"

	// ClaimsKey is the context key for session token claims
	ClaimsKey contextKey = "claims"
)

// GetRequestIDFromContext returns the request ID assigned by chi's RequestID
// middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetIdentityFromContext retrieves the identity snapshot stored by the gate or RequireAuth
func GetIdentityFromContext(ctx context.Context) (access.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(access.Identity)
	return identity, ok
}

// WithIdentity adds an identity snapshot to the context
func WithIdentity(ctx context.Context, identity access.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetClaimsFromContext retrieves session token claims from context
func GetClaimsFromContext(ctx context.Context) *token.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*token.Claims); ok {
		return claims
	}
	return nil
}

// WithClaims adds session token claims to the context
func WithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}
