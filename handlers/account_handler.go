package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/middleware"
	"github.com/upb/paper-archive/models"
	"github.com/upb/paper-archive/services"
	"github.com/upb/paper-archive/utils"
	"go.uber.org/zap"
)

// AssignAccessRequest represents a request to change an account's role and permissions
type AssignAccessRequest struct {
	Role        string   `json:"role" validate:"required,role"`
	Permissions []string `json:"permissions" validate:"max=6,dive,permission"`
}

// UserResponse represents an account in API responses
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

// CurrentUserResponse is the response body for GET /api/v1/users/me
type CurrentUserResponse struct {
	UserResponse
	Home  string   `json:"home"`
	Pages []string `json:"pages"`
}

// AuditLogResponse represents an audit entry in API responses
type AuditLogResponse struct {
	ID        uuid.UUID       `json:"id"`
	ActorID   *uuid.UUID      `json:"actor_id,omitempty"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details"`
	IPAddress string          `json:"ip_address,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// AccountService defines the account operations used by the handler
type AccountService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, actor services.Actor, limit, offset int) ([]*models.User, error)
	AssignAccess(ctx context.Context, actor services.Actor, userID uuid.UUID, change services.AccessChange) (*models.User, error)
	AuditTrail(ctx context.Context, actor services.Actor, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

// AccountHandler handles account-related HTTP requests
type AccountHandler struct {
	accounts AccountService
	policy   *access.Policy
	logger   *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts AccountService, policy *access.Policy, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		policy:   policy,
		logger:   logger,
	}
}

// HandleGetCurrentUser handles GET /api/v1/users/me
func (h *AccountHandler) HandleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	user, err := h.accounts.Get(r.Context(), actor.ID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	// Role and pages follow the session, which only changes at the next login
	identity, _ := middleware.GetIdentityFromContext(r.Context())
	home, _ := h.policy.HomeFor(identity.Role)
	resp := CurrentUserResponse{
		UserResponse: userToResponse(user),
		Home:         home,
		Pages:        navigation(h.policy, identity),
	}
	resp.Role = string(identity.Role)
	resp.Permissions = identity.Permissions.Strings()

	_ = utils.WriteOK(w, resp)
}

// HandleListAccounts handles GET /api/v1/admin/accounts
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	limit, offset, err := parsePaging(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	users, err := h.accounts.List(r.Context(), actor, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	responses := make([]UserResponse, len(users))
	for i, u := range users {
		responses[i] = userToResponse(u)
	}

	_ = utils.WriteOK(w, responses)
}

// HandleAssignAccess handles PUT /api/v1/admin/accounts/{id}/access
func (h *AccountHandler) HandleAssignAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid account ID format", nil)
		return
	}

	var req AssignAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	user, err := h.accounts.AssignAccess(ctx, actor, userID, services.AccessChange{
		Role:        access.Role(req.Role),
		Permissions: req.Permissions,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("account access updated",
		zap.String("request_id", requestID),
		zap.String("user_id", userID.String()),
		zap.String("role", string(user.Role)))

	_ = utils.WriteOK(w, userToResponse(user))
}

// HandleAuditTrail handles GET /api/v1/admin/accounts/{id}/audit
func (h *AccountHandler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid account ID format", nil)
		return
	}

	limit, offset, err := parsePaging(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	logs, err := h.accounts.AuditTrail(r.Context(), actor, userID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	responses := make([]AuditLogResponse, len(logs))
	for i, l := range logs {
		responses[i] = AuditLogResponse{
			ID:        l.ID,
			ActorID:   l.ActorID,
			Action:    string(l.Action),
			Details:   l.Details,
			IPAddress: l.IPAddress,
			RequestID: l.RequestID,
			Timestamp: l.Timestamp.Format(time.RFC3339),
		}
	}

	_ = utils.WriteOK(w, responses)
}

// actor builds the acting account from the claims and identity set by RequireAuth.
func (h *AccountHandler) actor(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return services.Actor{}, false
	}

	id, err := claims.UserID()
	if err != nil {
		h.logger.Warn("session token has invalid subject", zap.Error(err))
		_ = utils.WriteUnauthorized(w, "Invalid session")
		return services.Actor{}, false
	}

	identity, _ := middleware.GetIdentityFromContext(r.Context())
	return services.Actor{
		ID:          id,
		Role:        identity.Role,
		Permissions: identity.Permissions,
	}, true
}

func parsePaging(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, errInvalidQuery("limit")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, errInvalidQuery("offset")
		}
	}
	return limit, offset, nil
}

type errInvalidQuery string

func (e errInvalidQuery) Error() string {
	return "Invalid " + string(e) + " parameter"
}

func userToResponse(u *models.User) UserResponse {
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		Permissions: perms,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   u.UpdatedAt.Format(time.RFC3339),
	}
}
