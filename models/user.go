package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/upb/paper-archive/access"
)

// User is an account of the paper archive, signed in through Google
type User struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Email       string      `json:"email" db:"email"`
	GoogleSub   string      `json:"-" db:"google_sub"` // Google account identifier, empty until first login
	DisplayName string      `json:"display_name" db:"display_name"`
	Role        access.Role `json:"role" db:"role"`
	Permissions []string    `json:"permissions" db:"permissions"` // ordered; only admins carry permissions
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User instance
func NewUser(email, googleSub, displayName string, role access.Role) *User {
	now := time.Now().UTC()
	return &User{
		ID:          uuid.New(),
		Email:       email,
		GoogleSub:   googleSub,
		DisplayName: displayName,
		Role:        role,
		Permissions: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// PermissionSet returns the user's known permissions in stored order.
// Non-admin users always get an empty set.
func (u *User) PermissionSet() access.PermissionSet {
	if u.Role != access.RoleAdmin {
		return access.PermissionSet{}
	}
	perms := make([]access.Permission, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		if perm, ok := access.ParsePermission(p); ok {
			perms = append(perms, perm)
		}
	}
	return access.NewPermissionSet(perms...)
}

// IsSuperAdmin returns true if the user has the superadmin role
func (u *User) IsSuperAdmin() bool {
	return u.Role == access.RoleSuperAdmin
}
