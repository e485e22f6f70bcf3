package middleware

import (
	"net/http"
	"strings"

	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/session"
	"github.com/upb/paper-archive/token"
	"github.com/upb/paper-archive/utils"
	"go.uber.org/zap"
)

// AuthMiddleware guards JSON API routes. Unlike the page gate it answers with
// 401/403 JSON errors instead of redirects.
type AuthMiddleware struct {
	store  session.Store
	tokens *token.Manager
	logger *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(store session.Store, tokens *token.Manager, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		store:  store,
		tokens: tokens,
		logger: logger,
	}
}

// RequireAuth requires a valid session token, taken from the Authorization
// header ("Bearer TOKEN") or else from the caller's session.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		identity, err := m.identity(r)
		if err != nil {
			m.logger.Error("identity snapshot failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		if !identity.HasToken() {
			m.logger.Debug("missing session",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		claims, err := m.tokens.Parse(identity.AuthToken)
		if err != nil {
			m.logger.Warn("session token rejected",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired session")
			return
		}

		ctx = WithIdentity(ctx, identity)
		ctx = WithClaims(ctx, claims)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Subject),
			zap.String("role", string(identity.Role)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identity prefers a bearer token over the session store. A bearer token's
// claims are decoded the same way a stored session is.
func (m *AuthMiddleware) identity(r *http.Request) (access.Identity, error) {
	bearer := extractBearerToken(r)
	if bearer == "" {
		return m.store.Snapshot(r.Context(), r)
	}

	claims, err := m.tokens.Parse(bearer)
	if err != nil {
		// RequireAuth rejects the token again with the proper status
		return access.Identity{AuthToken: bearer}, nil
	}

	perms := make([]access.Permission, 0, len(claims.Permissions))
	for _, p := range claims.Permissions {
		perms = append(perms, access.Permission(p))
	}
	return access.DecodeIdentity(access.NewRecord(bearer, access.Role(claims.Role), perms)), nil
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// RequireRole requires one of roles. Must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...access.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			identity, ok := GetIdentityFromContext(ctx)
			if !ok {
				m.logger.Error("identity not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			m.logger.Warn("insufficient role",
				zap.String("request_id", requestID),
				zap.String("role", string(identity.Role)))
			_ = utils.WriteForbidden(w, "Insufficient permissions")
		})
	}
}

// RequirePermission requires an admin holding perm. Superadmins always pass.
// Must run after RequireAuth.
func (m *AuthMiddleware) RequirePermission(perm access.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			identity, ok := GetIdentityFromContext(ctx)
			if !ok {
				m.logger.Error("identity not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if identity.Role == access.RoleSuperAdmin ||
				(identity.Role == access.RoleAdmin && identity.Permissions.Contains(perm)) {
				next.ServeHTTP(w, r)
				return
			}

			m.logger.Warn("missing permission",
				zap.String("request_id", requestID),
				zap.String("role", string(identity.Role)),
				zap.String("permission", string(perm)))
			_ = utils.WriteForbidden(w, "Insufficient permissions")
		})
	}
}
