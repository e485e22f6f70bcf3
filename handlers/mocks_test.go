package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/middleware"
	"github.com/upb/paper-archive/models"
	"github.com/upb/paper-archive/services"
	"github.com/upb/paper-archive/token"
)

// MockAccountService is a mock implementation of AccountService
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountService) List(ctx context.Context, actor services.Actor, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockAccountService) AssignAccess(ctx context.Context, actor services.Actor, userID uuid.UUID, change services.AccessChange) (*models.User, error) {
	args := m.Called(ctx, actor, userID, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountService) AuditTrail(ctx context.Context, actor services.Actor, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, actor, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

func newTestTokens(t *testing.T) *token.Manager {
	t.Helper()
	tokens, err := token.NewManager(token.Config{
		SigningKey: "0123456789abcdef0123456789abcdef",
		TTL:        time.Hour,
	})
	require.NoError(t, err)
	return tokens
}

func testPolicy(t *testing.T) *access.Policy {
	t.Helper()
	policy, err := access.DefaultPolicy()
	require.NoError(t, err)
	return policy
}

// signedInRequest builds a request carrying what RequireAuth puts in context.
func signedInRequest(method, target string, body interface{}, userID uuid.UUID, role access.Role, perms ...access.Permission) *http.Request {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)

	claims := &token.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()}}
	ctx := middleware.WithClaims(req.Context(), claims)
	ctx = middleware.WithIdentity(ctx, access.NewIdentity("tok", role, access.NewPermissionSet(perms...)))
	return req.WithContext(ctx)
}

func decodeData(t *testing.T, body io.Reader, out interface{}) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}
