package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/middleware"
	"github.com/upb/paper-archive/utils"
	"go.uber.org/zap"
)

// EvaluateRequest asks the gate about a page navigation. ExpectedRole defaults
// to the role the route is registered for.
type EvaluateRequest struct {
	Route        string `json:"route" validate:"required,abspath"`
	ExpectedRole string `json:"expected_role,omitempty" validate:"omitempty,role"`
}

// DecisionResponse is a gate decision in API responses
type DecisionResponse struct {
	Decision string `json:"decision"`
	Path     string `json:"path,omitempty"`
	Reason   string `json:"reason"`
}

// ProtectedRouteResponse describes one protected page
type ProtectedRouteResponse struct {
	Path               string `json:"path"`
	Role               string `json:"role"`
	RequiredPermission string `json:"required_permission,omitempty"`
}

// PolicyResponse is the public view of the route policy
type PolicyResponse struct {
	LoginPath       string                   `json:"login_path"`
	RoleHome        map[string]string        `json:"role_home"`
	ProtectedRoutes []ProtectedRouteResponse `json:"protected_routes"`
}

// PageResponse is returned by protected page routes once the gate allows them
type PageResponse struct {
	Route       string   `json:"route"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Navigation  []string `json:"navigation"`
}

// AccessHandler exposes the access gate to the single-page frontend
type AccessHandler struct {
	gate   *middleware.GateMiddleware
	logger *zap.Logger
}

// NewAccessHandler creates a new AccessHandler
func NewAccessHandler(gate *middleware.GateMiddleware, logger *zap.Logger) *AccessHandler {
	return &AccessHandler{
		gate:   gate,
		logger: logger,
	}
}

// HandleGetPolicy handles GET /api/v1/access/policy
func (h *AccessHandler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	policy := h.gate.Policy()

	roleHome := make(map[string]string, len(policy.RoleHome))
	for role, home := range policy.RoleHome {
		roleHome[string(role)] = home
	}

	routes := make([]ProtectedRouteResponse, 0, len(policy.ProtectedRoutes))
	for _, pr := range policy.ProtectedRoutes {
		route := ProtectedRouteResponse{Path: pr.Path, Role: string(pr.Role)}
		if perm, ok := policy.RequiredPermission(pr.Path); ok {
			route.RequiredPermission = string(perm)
		}
		routes = append(routes, route)
	}

	_ = utils.WriteOK(w, PolicyResponse{
		LoginPath:       policy.LoginPath,
		RoleHome:        roleHome,
		ProtectedRoutes: routes,
	})
}

// HandleEvaluate handles POST /api/v1/access/evaluate
func (h *AccessHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	expected := access.Role(req.ExpectedRole)
	if expected == "" {
		role, ok := h.gate.Policy().RoleFor(req.Route)
		if !ok {
			_ = utils.WriteNotFound(w, "Route is not protected")
			return
		}
		expected = role
	}

	decision, _ := h.gate.Decide(r, req.Route, expected)
	_ = utils.WriteOK(w, toDecisionResponse(decision))
}

// HandlePage answers a protected page route with its descriptor. It must be
// mounted behind GateMiddleware.Protect.
func (h *AccessHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	_ = utils.WriteOK(w, PageResponse{
		Route:       r.URL.Path,
		Role:        string(identity.Role),
		Permissions: identity.Permissions.Strings(),
		Navigation:  navigation(h.gate.Policy(), identity),
	})
}

// navigation lists the pages the gate would allow for identity.
func navigation(policy *access.Policy, identity access.Identity) []string {
	pages := make([]string, 0)
	for _, route := range policy.RoutesFor(identity.Role) {
		if policy.Evaluate(identity, route, identity.Role).Allowed() {
			pages = append(pages, route)
		}
	}
	return pages
}

func toDecisionResponse(d access.Decision) DecisionResponse {
	return DecisionResponse{
		Decision: d.Outcome.String(),
		Path:     d.Path,
		Reason:   string(d.Reason),
	}
}
