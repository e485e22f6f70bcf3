package handlers

import (
	"net/http"

	"github.com/upb/paper-archive/auth"
	"github.com/upb/paper-archive/utils"
)

// AuthDeps exposes the Google sign-in handler. AuthHandler returns nil when
// no Google client is configured.
type AuthDeps interface {
	AuthHandler() *auth.Handler
}

// AuthLoginHandler handles GET /auth/login
func AuthLoginHandler(deps AuthDeps) http.HandlerFunc {
	return signIn(deps, (*auth.Handler).HandleLogin)
}

// AuthCallbackHandler handles GET /auth/callback
func AuthCallbackHandler(deps AuthDeps) http.HandlerFunc {
	return signIn(deps, (*auth.Handler).HandleCallback)
}

// AuthLogoutHandler handles GET and POST /auth/logout
func AuthLogoutHandler(deps AuthDeps) http.HandlerFunc {
	return signIn(deps, (*auth.Handler).HandleLogout)
}

// signIn resolves the handler per request so the routes can be mounted before
// sign-in is configured. Without it the endpoints answer 503.
func signIn(deps AuthDeps, serve func(*auth.Handler, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := deps.AuthHandler()
		if h == nil {
			_ = utils.WriteServiceUnavailable(w, "Sign-in not configured", nil)
			return
		}
		serve(h, w, r)
	}
}
