package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/auth"
	"github.com/upb/paper-archive/config"
	"github.com/upb/paper-archive/googleauth"
	"github.com/upb/paper-archive/session"
	"github.com/upb/paper-archive/token"
	"go.uber.org/zap"
)

type stubAuthDeps struct {
	handler *auth.Handler
}

func (d stubAuthDeps) AuthHandler() *auth.Handler {
	return d.handler
}

func newAuthHandler(t *testing.T) *auth.Handler {
	t.Helper()

	tokens, err := token.NewManager(token.Config{
		SigningKey: "0123456789abcdef0123456789abcdef",
		TTL:        time.Hour,
	})
	require.NoError(t, err)

	policy, err := access.DefaultPolicy()
	require.NoError(t, err)

	cfg := &config.Config{Google: config.GoogleConfig{FrontEndURL: "http://localhost:5173"}}
	return auth.NewHandler(cfg, auth.Deps{
		Exchanger: googleauth.NewExchanger(googleauth.ExchangerConfig{
			ClientID:     "client-id",
			ClientSecret: "secret",
			RedirectURL:  "http://localhost:8080/auth/callback",
			HostedDomain: "upb.edu.co",
		}),
		Tokens: tokens,
		Store:  session.NewTokenStore(tokens, session.CookieOptions{}, zap.NewNop()),
		Policy: policy,
	}, zap.NewNop())
}

func TestAuthHandlers_NotConfigured(t *testing.T) {
	deps := stubAuthDeps{}

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"login", AuthLoginHandler(deps)},
		{"callback", AuthCallbackHandler(deps)},
		{"logout", AuthLogoutHandler(deps)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/auth/"+tt.name, nil))

			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Contains(t, rec.Body.String(), "Sign-in not configured")
		})
	}
}

func TestAuthLoginHandler(t *testing.T) {
	deps := stubAuthDeps{handler: newAuthHandler(t)}
	rec := httptest.NewRecorder()

	AuthLoginHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	parsed, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	assert.Equal(t, "accounts.google.com", parsed.Host)
	assert.Equal(t, "client-id", parsed.Query().Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/callback", parsed.Query().Get("redirect_uri"))
	assert.Equal(t, "upb.edu.co", parsed.Query().Get("hd"))
	assert.Contains(t, parsed.Query().Get("scope"), "openid")
	assert.NotEmpty(t, parsed.Query().Get("state"))
}

func TestAuthCallbackHandler_RejectsMissingState(t *testing.T) {
	deps := stubAuthDeps{handler: newAuthHandler(t)}
	rec := httptest.NewRecorder()

	AuthCallbackHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthLogoutHandler(t *testing.T) {
	deps := stubAuthDeps{handler: newAuthHandler(t)}
	rec := httptest.NewRecorder()

	AuthLogoutHandler(deps)(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://localhost:5173/login", rec.Header().Get("Location"))
}
