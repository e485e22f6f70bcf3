package access

// Role is the single coarse-grained category of an authenticated user.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Roles returns every known role in a stable order.
func Roles() []Role {
	return []Role{RoleStudent, RoleInstructor, RoleAdmin, RoleSuperAdmin}
}

// ParseRole returns the role named by s. Unknown values are rejected.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleStudent, RoleInstructor, RoleAdmin, RoleSuperAdmin:
		return Role(s), true
	}
	return "", false
}

// String implements fmt.Stringer
func (r Role) String() string {
	return string(r)
}

// Permission is a fine-grained capability. Only admin accounts carry permissions.
type Permission string

// Admin permissions
const (
	PermManageAccounts      Permission = "manage_accounts"
	PermManageRepository    Permission = "manage_repository"
	PermManageSubmissions   Permission = "manage_submissions"
	PermManageCalendar      Permission = "manage_calendar"
	PermManageNotifications Permission = "manage_notifications"
	PermViewReports         Permission = "view_reports"
)

var knownPermissions = map[Permission]bool{
	PermManageAccounts:      true,
	PermManageRepository:    true,
	PermManageSubmissions:   true,
	PermManageCalendar:      true,
	PermManageNotifications: true,
	PermViewReports:         true,
}

// Permissions returns the permission catalog in a stable order.
func Permissions() []Permission {
	return []Permission{
		PermManageAccounts,
		PermManageRepository,
		PermManageSubmissions,
		PermManageCalendar,
		PermManageNotifications,
		PermViewReports,
	}
}

// ParsePermission returns the permission named by s. Unknown keys are rejected.
func ParsePermission(s string) (Permission, bool) {
	p := Permission(s)
	if !knownPermissions[p] {
		return "", false
	}
	return p, true
}

// String implements fmt.Stringer
func (p Permission) String() string {
	return string(p)
}
