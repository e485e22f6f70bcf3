package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/token"
)

// MockStore is a mock implementation of session.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Snapshot(ctx context.Context, r *http.Request) (access.Identity, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(access.Identity), args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, w http.ResponseWriter, r *http.Request, rec access.Record) error {
	args := m.Called(ctx, w, r, rec)
	return args.Error(0)
}

func (m *MockStore) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	args := m.Called(ctx, w, r)
	return args.Error(0)
}

func newTokenManager(t *testing.T) *token.Manager {
	t.Helper()
	tokens, err := token.NewManager(token.Config{
		SigningKey: "0123456789abcdef0123456789abcdef",
		TTL:        time.Hour,
	})
	require.NoError(t, err)
	return tokens
}

func issue(t *testing.T, tokens *token.Manager, role access.Role, perms ...string) string {
	t.Helper()
	raw, err := tokens.Issue(token.Subject{
		UserID:      uuid.New(),
		Email:       "user@upb.edu.co",
		Role:        string(role),
		Permissions: perms,
	})
	require.NoError(t, err)
	return raw
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})
