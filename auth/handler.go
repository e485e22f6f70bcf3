// Package auth implements Google sign-in and sign-out. It is the only writer of
// the identity store read by the access gate.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/config"
	"github.com/upb/paper-archive/googleauth"
	"github.com/upb/paper-archive/metrics"
	"github.com/upb/paper-archive/middleware"
	"github.com/upb/paper-archive/models"
	"github.com/upb/paper-archive/services"
	"github.com/upb/paper-archive/services/audit"
	"github.com/upb/paper-archive/session"
	"github.com/upb/paper-archive/token"
	"github.com/upb/paper-archive/utils"
	"go.uber.org/zap"
)

const (
	// StateCookieName is the cookie name for OAuth state (CSRF)
	StateCookieName   = "oauth_state"
	stateCookieMaxAge = 600
)

// Login results recorded in metrics
const (
	loginSuccess  = "success"
	loginDenied   = "denied"
	loginRejected = "rejected"
	loginFailed   = "failed"
)

// CodeExchanger builds the consent URL and exchanges authorization codes for ID tokens.
type CodeExchanger interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (idToken string, err error)
}

// IDTokenValidator validates Google ID tokens and returns parsed claims.
type IDTokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*googleauth.GoogleClaims, error)
}

// AccountResolver finds or provisions the account of a verified Google profile.
type AccountResolver interface {
	Resolve(ctx context.Context, profile services.GoogleProfile) (*models.User, error)
}

// LoginAuditor records sign-ins and sign-outs.
type LoginAuditor interface {
	LogLogin(userID uuid.UUID, role access.Role, permissions []string, meta audit.RequestMeta) error
	LogLogout(userID *uuid.UUID, meta audit.RequestMeta) error
}

// Handler handles the Google sign-in flow (login, callback, logout).
type Handler struct {
	cfg       *config.Config
	exchanger CodeExchanger
	validator IDTokenValidator
	accounts  AccountResolver
	tokens    *token.Manager
	store     session.Store
	policy    *access.Policy
	auditor   LoginAuditor
	logger    *zap.Logger
}

// Deps groups the collaborators of Handler.
type Deps struct {
	Exchanger CodeExchanger
	Validator IDTokenValidator
	Accounts  AccountResolver
	Tokens    *token.Manager
	Store     session.Store
	Policy    *access.Policy
	Auditor   LoginAuditor // optional
}

// NewHandler creates a new auth handler.
func NewHandler(cfg *config.Config, deps Deps, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		exchanger: deps.Exchanger,
		validator: deps.Validator,
		accounts:  deps.Accounts,
		tokens:    deps.Tokens,
		store:     deps.Store,
		policy:    deps.Policy,
		auditor:   deps.Auditor,
		logger:    logger,
	}
}

// HandleLogin redirects to the Google consent screen
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if h.exchanger == nil {
		h.logger.Error("google sign-in not configured")
		_ = utils.WriteInternalServerError(w, "Authentication not configured")
		return
	}

	state, err := generateSecureState()
	if err != nil {
		h.logger.Error("failed to generate state", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to initiate login")
		return
	}

	h.setStateCookie(w, state, stateCookieMaxAge)
	http.Redirect(w, r, h.exchanger.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback completes sign-in: it verifies the Google ID token, resolves
// the account, writes the identity store and redirects to the role's home.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if reason := query.Get("error"); reason != "" {
		h.logger.Info("google sign-in cancelled", zap.String("reason", reason))
		metrics.RecordLogin(loginDenied)
		http.Redirect(w, r, h.loginURL(url.Values{"error": {reason}}), http.StatusFound)
		return
	}

	code := query.Get("code")
	state := query.Get("state")

	if code == "" {
		_ = utils.WriteBadRequest(w, "Missing authorization code", nil)
		return
	}
	if state == "" {
		_ = utils.WriteBadRequest(w, "Missing state parameter", nil)
		return
	}

	stateCookie, err := r.Cookie(StateCookieName)
	if err != nil || stateCookie.Value != state {
		_ = utils.WriteBadRequest(w, "Invalid or expired state", nil)
		return
	}
	h.setStateCookie(w, "", -1)

	if h.exchanger == nil || h.validator == nil {
		h.logger.Error("google sign-in not configured")
		_ = utils.WriteInternalServerError(w, "Authentication not configured")
		return
	}

	idToken, err := h.exchanger.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Warn("code exchange failed", zap.Error(err))
		metrics.RecordLogin(loginFailed)
		_ = utils.WriteBadGateway(w, "Identity provider unavailable")
		return
	}

	claims, err := h.validator.ValidateToken(r.Context(), idToken)
	if err != nil {
		h.logger.Warn("id token validation failed", zap.Error(err))
		metrics.RecordLogin(loginRejected)
		_ = utils.WriteUnauthorized(w, "Invalid token")
		return
	}

	user, err := h.accounts.Resolve(r.Context(), services.GoogleProfile{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	})
	if err != nil {
		metrics.RecordLogin(loginRejected)
		h.writeResolveError(w, err)
		return
	}

	perms := user.PermissionSet()
	raw, err := h.tokens.Issue(token.Subject{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        string(user.Role),
		Permissions: perms.Strings(),
	})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		metrics.RecordLogin(loginFailed)
		_ = utils.WriteInternalServerError(w, "Failed to complete login")
		return
	}

	if err := h.store.Save(r.Context(), w, r, access.NewRecord(raw, user.Role, perms.Slice())); err != nil {
		h.logger.Error("failed to save session", zap.Error(err))
		metrics.RecordLogin(loginFailed)
		_ = utils.WriteServiceUnavailable(w, "Session store unavailable", nil)
		return
	}

	if h.auditor != nil {
		if err := h.auditor.LogLogin(user.ID, user.Role, perms.Strings(), requestMeta(r)); err != nil {
			h.logger.Warn("failed to audit login", zap.Error(err))
		}
	}
	metrics.RecordLogin(loginSuccess)

	h.logger.Info("user signed in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))

	home, ok := h.policy.HomeFor(user.Role)
	if !ok {
		home = h.policy.LoginPath
	}
	http.Redirect(w, r, h.cfg.Google.FrontEndURL+home, http.StatusFound)
}

// HandleLogout clears the identity keys and redirects to the login page
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID := h.sessionUserID(r)

	if err := h.store.Clear(r.Context(), w, r); err != nil {
		// Not fatal: the cookie is expired either way
		h.logger.Warn("failed to clear session", zap.Error(err))
	}

	if h.auditor != nil {
		if err := h.auditor.LogLogout(userID, requestMeta(r)); err != nil {
			h.logger.Warn("failed to audit logout", zap.Error(err))
		}
	}

	http.Redirect(w, r, h.loginURL(nil), http.StatusFound)
}

func (h *Handler) sessionUserID(r *http.Request) *uuid.UUID {
	identity, err := h.store.Snapshot(r.Context(), r)
	if err != nil || !identity.HasToken() {
		return nil
	}
	claims, err := h.tokens.Parse(identity.AuthToken)
	if err != nil {
		return nil
	}
	id, err := claims.UserID()
	if err != nil {
		return nil
	}
	return &id
}

func (h *Handler) writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case services.IsValidationError(err):
		h.logger.Warn("google profile rejected", zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), services.GetErrorDetails(err))
	case services.IsUnauthorizedError(err):
		h.logger.Warn("google account mismatch", zap.Error(err))
		_ = utils.WriteUnauthorized(w, "Account is linked to a different Google identity")
	case services.IsConflictError(err):
		_ = utils.WriteConflict(w, err.Error(), nil)
	default:
		h.logger.Error("failed to resolve account", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to complete login")
	}
}

func (h *Handler) loginURL(params url.Values) string {
	u := h.cfg.Google.FrontEndURL + h.policy.LoginPath
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (h *Handler) setStateCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func requestMeta(r *http.Request) audit.RequestMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return audit.RequestMeta{
		RequestID: middleware.GetRequestIDFromContext(r.Context()),
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

func generateSecureState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
