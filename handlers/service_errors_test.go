package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/paper-archive/services"
	"github.com/upb/paper-archive/utils"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{"not found error", services.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{"validation error", services.ErrInvalidRole, http.StatusBadRequest, "bad_request"},
		{"unauthorized error", services.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden error", services.ErrSelfRoleChange, http.StatusForbidden, "forbidden"},
		{"conflict error", services.ErrDuplicateEmail, http.StatusConflict, "conflict"},
		{"external error", services.WrapExternal("exchange", errors.New("timeout")), http.StatusBadGateway, "bad_gateway"},
		{"internal error", services.WrapInternal("query", errors.New("db down")), http.StatusInternalServerError, "internal_error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
		})
	}
}

func TestHandleServiceError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()

	HandleServiceError(w, services.WrapInternal("query users", errors.New("password=hunter2")), zap.NewNop())

	assert.NotContains(t, w.Body.String(), "hunter2")
}

func TestHandleServiceError_IncludesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	HandleServiceError(w, services.ErrInvalidPermission.WithDetail("permission", "fly"), zap.NewNop())

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "fly", response.Details["permission"])
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()

	HandleServiceError(w, nil, zap.NewNop())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	type request struct {
		Role string `validate:"required,role"`
	}

	t.Run("field errors become details", func(t *testing.T) {
		w := httptest.NewRecorder()

		HandleValidationError(w, utils.ValidateStruct(&request{Role: "dean"}), zap.NewNop())

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Validation failed", response.Message)
		assert.Contains(t, response.Details, "Role")
	})

	t.Run("plain error keeps its message", func(t *testing.T) {
		w := httptest.NewRecorder()

		HandleValidationError(w, errors.New("invalid JSON body"), zap.NewNop())

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "invalid JSON body", response.Message)
	})
}
