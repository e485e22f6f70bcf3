package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type accessRequest struct {
	Route       string   `validate:"required,abspath"`
	Role        string   `validate:"required,role"`
	Permissions []string `validate:"max=6,dive,permission"`
	Email       string   `validate:"omitempty,email"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		req        accessRequest
		wantFields []string
	}{
		{
			name: "valid request",
			req:  accessRequest{Route: "/admin/accounts", Role: "admin", Permissions: []string{"manage_accounts"}},
		},
		{
			name:       "missing route and role",
			req:        accessRequest{},
			wantFields: []string{"Route", "Role"},
		},
		{
			name:       "relative route",
			req:        accessRequest{Route: "admin/accounts", Role: "admin"},
			wantFields: []string{"Route"},
		},
		{
			name:       "unknown role",
			req:        accessRequest{Route: "/x", Role: "dean"},
			wantFields: []string{"Role"},
		},
		{
			name:       "unknown permission",
			req:        accessRequest{Route: "/x", Role: "admin", Permissions: []string{"view_reports", "fly"}},
			wantFields: []string{"Permissions[1]"},
		},
		{
			name:       "invalid email",
			req:        accessRequest{Route: "/x", Role: "student", Email: "nope"},
			wantFields: []string{"Email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			assert.True(t, IsValidationError(err))
			fields := GetValidationFields(err)
			assert.Len(t, fields, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestNewValidationError_Messages(t *testing.T) {
	err := ValidateStruct(&accessRequest{Route: "x", Role: "dean"})

	fields := GetValidationFields(err)
	assert.Equal(t, "Route must be an absolute path", fields["Route"])
	assert.Equal(t, "Role must be one of: student instructor admin superadmin", fields["Role"])
	assert.Equal(t, "Validation failed", err.Error())
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID("550e8400-e29b-41d4-a716-446655440000"))
	assert.Error(t, ValidateUUID("not-a-uuid"))
	assert.Error(t, ValidateUUID(""))
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email     string
		wantError bool
	}{
		{"ana@upb.edu.co", false},
		{"first.last+tag@example.com", false},
		{"", true},
		{"no-at-sign", true},
		{"two@@signs.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetValidationFields_NonValidationError(t *testing.T) {
	assert.Nil(t, GetValidationFields(assert.AnError))
	assert.False(t, IsValidationError(assert.AnError))
}
