package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/token"
	"go.uber.org/zap"
)

// ErrTokenMismatch is returned when a record's role or permissions differ from
// the claims of its token.
var ErrTokenMismatch = errors.New("record does not match token claims")

// TokenStore is a stateless store. The authToken cookie carries the signed
// session token and its claims hold role and permissions.
type TokenStore struct {
	tokens *token.Manager
	cookie CookieOptions
	logger *zap.Logger
}

// NewTokenStore creates a cookie token store
func NewTokenStore(tokens *token.Manager, cookie CookieOptions, logger *zap.Logger) *TokenStore {
	if cookie.TTL == 0 {
		cookie.TTL = tokens.TTL()
	}
	return &TokenStore{
		tokens: tokens,
		cookie: cookie,
		logger: logger,
	}
}

// Snapshot parses the token once. A missing, forged or expired token yields an
// anonymous identity.
func (s *TokenStore) Snapshot(_ context.Context, r *http.Request) (access.Identity, error) {
	raw := cookieValue(r, access.KeyAuthToken)
	if raw == "" {
		return access.Identity{}, nil
	}

	claims, err := s.tokens.Parse(raw)
	if err != nil {
		s.logger.Debug("discarding session token", zap.Error(err))
		return access.Identity{}, nil
	}

	return access.DecodeIdentity(recordFromClaims(raw, claims)), nil
}

// Save stores rec.AuthToken in the cookie. The token must carry the same role
// and permissions as rec.
func (s *TokenStore) Save(_ context.Context, w http.ResponseWriter, _ *http.Request, rec access.Record) error {
	claims, err := s.tokens.Parse(rec.AuthToken)
	if err != nil {
		return err
	}

	fromToken := access.DecodeIdentity(recordFromClaims(rec.AuthToken, claims))
	fromRecord := access.DecodeIdentity(rec)
	if fromToken.Role != fromRecord.Role ||
		!equalPermissions(fromToken.Permissions, fromRecord.Permissions) {
		return ErrTokenMismatch
	}

	s.cookie.set(w, access.KeyAuthToken, rec.AuthToken)
	return nil
}

// Clear expires the token cookie.
func (s *TokenStore) Clear(_ context.Context, w http.ResponseWriter, _ *http.Request) error {
	s.cookie.expire(w, access.KeyAuthToken)
	return nil
}

func recordFromClaims(raw string, claims *token.Claims) access.Record {
	perms := make([]access.Permission, 0, len(claims.Permissions))
	for _, p := range claims.Permissions {
		perms = append(perms, access.Permission(p))
	}
	return access.NewRecord(raw, access.Role(claims.Role), perms)
}

func equalPermissions(a, b access.PermissionSet) bool {
	as, bs := a.Slice(), b.Slice()
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
