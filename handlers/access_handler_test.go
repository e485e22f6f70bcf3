package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/middleware"
	"github.com/upb/paper-archive/session"
	"github.com/upb/paper-archive/token"
	"go.uber.org/zap"
)

type accessFixture struct {
	handler *AccessHandler
	gate    *middleware.GateMiddleware
	tokens  *token.Manager
}

func newAccessFixture(t *testing.T) *accessFixture {
	t.Helper()
	tokens := newTestTokens(t)
	store := session.NewTokenStore(tokens, session.CookieOptions{}, zap.NewNop())
	gate := middleware.NewGateMiddleware(testPolicy(t), store, zap.NewNop())
	return &accessFixture{
		handler: NewAccessHandler(gate, zap.NewNop()),
		gate:    gate,
		tokens:  tokens,
	}
}

func (f *accessFixture) cookie(t *testing.T, role access.Role, perms ...string) *http.Cookie {
	t.Helper()
	raw, err := f.tokens.Issue(token.Subject{
		UserID:      uuid.New(),
		Email:       "user@upb.edu.co",
		Role:        string(role),
		Permissions: perms,
	})
	require.NoError(t, err)
	return &http.Cookie{Name: access.KeyAuthToken, Value: raw}
}

func evaluateRequest(t *testing.T, body interface{}, cookie *http.Cookie) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/access/evaluate", bytes.NewReader(raw))
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestHandleGetPolicy(t *testing.T) {
	f := newAccessFixture(t)
	w := httptest.NewRecorder()

	f.handler.HandleGetPolicy(w, httptest.NewRequest(http.MethodGet, "/api/v1/access/policy", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body PolicyResponse
	decodeData(t, w.Body, &body)
	assert.Equal(t, "/login", body.LoginPath)
	assert.Equal(t, "/student/dashboard", body.RoleHome["student"])
	assert.NotEmpty(t, body.ProtectedRoutes)

	for _, route := range body.ProtectedRoutes {
		if route.Path == "/admin/accounts" {
			assert.Equal(t, "admin", route.Role)
			assert.Equal(t, "manage_accounts", route.RequiredPermission)
		}
		if route.Path == "/admin/dashboard" {
			assert.Empty(t, route.RequiredPermission)
		}
	}
}

func TestHandleEvaluate(t *testing.T) {
	f := newAccessFixture(t)

	tests := []struct {
		name     string
		body     EvaluateRequest
		cookie   *http.Cookie
		expected DecisionResponse
	}{
		{
			name:     "anonymous visitor goes to login",
			body:     EvaluateRequest{Route: "/student/dashboard", ExpectedRole: "student"},
			expected: DecisionResponse{Decision: "redirect", Path: "/login", Reason: "missing_token"},
		},
		{
			name:     "student is allowed on student page",
			body:     EvaluateRequest{Route: "/student/dashboard", ExpectedRole: "student"},
			cookie:   f.cookie(t, access.RoleStudent),
			expected: DecisionResponse{Decision: "allow", Reason: "authorized"},
		},
		{
			name:     "student on instructor page goes home",
			body:     EvaluateRequest{Route: "/instructor/instructor_dashboard", ExpectedRole: "instructor"},
			cookie:   f.cookie(t, access.RoleStudent),
			expected: DecisionResponse{Decision: "redirect", Path: "/student/dashboard", Reason: "role_mismatch"},
		},
		{
			name:     "expected role defaults to the registered role",
			body:     EvaluateRequest{Route: "/admin/accounts"},
			cookie:   f.cookie(t, access.RoleAdmin, "manage_repository"),
			expected: DecisionResponse{Decision: "redirect", Path: "/admin/repository", Reason: "missing_permission"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			f.handler.HandleEvaluate(w, evaluateRequest(t, tt.body, tt.cookie))

			require.Equal(t, http.StatusOK, w.Code)
			var got DecisionResponse
			decodeData(t, w.Body, &got)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestHandleEvaluate_BadRequests(t *testing.T) {
	f := newAccessFixture(t)

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{"relative route", EvaluateRequest{Route: "student/dashboard", ExpectedRole: "student"}, http.StatusBadRequest},
		{"unknown role", EvaluateRequest{Route: "/student/dashboard", ExpectedRole: "dean"}, http.StatusBadRequest},
		{"missing route", EvaluateRequest{ExpectedRole: "student"}, http.StatusBadRequest},
		{"unregistered route without role", EvaluateRequest{Route: "/nowhere"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			f.handler.HandleEvaluate(w, evaluateRequest(t, tt.body, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/access/evaluate", bytes.NewBufferString("{"))

		f.handler.HandleEvaluate(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandlePage(t *testing.T) {
	f := newAccessFixture(t)
	page := f.gate.Protect(access.RoleAdmin)(http.HandlerFunc(f.handler.HandlePage))

	t.Run("allowed admin gets descriptor with permitted navigation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/reports", nil)
		req.AddCookie(f.cookie(t, access.RoleAdmin, "view_reports"))
		w := httptest.NewRecorder()

		page.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var got PageResponse
		decodeData(t, w.Body, &got)
		assert.Equal(t, "/admin/reports", got.Route)
		assert.Equal(t, "admin", got.Role)
		assert.Equal(t, []string{"view_reports"}, got.Permissions)
		assert.Contains(t, got.Navigation, "/admin/dashboard")
		assert.Contains(t, got.Navigation, "/admin/reports")
		assert.NotContains(t, got.Navigation, "/admin/accounts")
	})

	t.Run("gate redirects before the page runs", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/reports", nil)
		req.AddCookie(f.cookie(t, access.RoleInstructor))
		w := httptest.NewRecorder()

		page.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/instructor/instructor_dashboard", w.Header().Get("Location"))
	})

	t.Run("without identity in context", func(t *testing.T) {
		w := httptest.NewRecorder()

		f.handler.HandlePage(w, httptest.NewRequest(http.MethodGet, "/admin/reports", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
