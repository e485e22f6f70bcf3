package access

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultLoginPath is used when a policy does not name a login page.
const DefaultLoginPath = "/login"

var (
	// ErrInvalidPolicy is returned when a route policy fails validation
	ErrInvalidPolicy = errors.New("invalid route policy")
)

// ProtectedRoute attaches the expected role to a page route.
type ProtectedRoute struct {
	Path string
	Role Role
}

// Policy is the static route configuration consulted by the gate.
// It is read-only after Validate and safe for concurrent use.
type Policy struct {
	LoginPath        string
	RoleHome         map[Role]string
	PermissionRoutes map[Permission]string
	RoutePermissions map[string]Permission
	ProtectedRoutes  []ProtectedRoute
}

// HomeFor returns the default route of role.
func (p *Policy) HomeFor(role Role) (string, bool) {
	home, ok := p.RoleHome[role]
	return home, ok && home != ""
}

// RequiredPermission returns the permission an admin needs for route, if any.
func (p *Policy) RequiredPermission(route string) (Permission, bool) {
	perm, ok := p.RoutePermissions[route]
	return perm, ok
}

// RouteFor returns the route unlocked by perm.
func (p *Policy) RouteFor(perm Permission) (string, bool) {
	route, ok := p.PermissionRoutes[perm]
	return route, ok && route != ""
}

func (p *Policy) loginPath() string {
	if p.LoginPath == "" {
		return DefaultLoginPath
	}
	return p.LoginPath
}

// Validate checks that the policy only references known roles and permissions,
// that every route is an absolute path, and that permission-guarded routes are
// registered for the admin role.
func (p *Policy) Validate() error {
	if p.LoginPath == "" {
		p.LoginPath = DefaultLoginPath
	}
	if err := validatePath(p.LoginPath); err != nil {
		return fmt.Errorf("%w: login_path: %v", ErrInvalidPolicy, err)
	}

	for role, home := range p.RoleHome {
		if _, ok := ParseRole(string(role)); !ok {
			return fmt.Errorf("%w: role_home: unknown role %q", ErrInvalidPolicy, role)
		}
		if err := validatePath(home); err != nil {
			return fmt.Errorf("%w: role_home[%s]: %v", ErrInvalidPolicy, role, err)
		}
	}

	for perm, route := range p.PermissionRoutes {
		if _, ok := ParsePermission(string(perm)); !ok {
			return fmt.Errorf("%w: permission_routes: unknown permission %q", ErrInvalidPolicy, perm)
		}
		if err := validatePath(route); err != nil {
			return fmt.Errorf("%w: permission_routes[%s]: %v", ErrInvalidPolicy, perm, err)
		}
	}

	registered := make(map[string]Role, len(p.ProtectedRoutes))
	for _, pr := range p.ProtectedRoutes {
		if _, ok := ParseRole(string(pr.Role)); !ok {
			return fmt.Errorf("%w: protected_routes[%s]: unknown role %q", ErrInvalidPolicy, pr.Path, pr.Role)
		}
		if err := validatePath(pr.Path); err != nil {
			return fmt.Errorf("%w: protected_routes: %v", ErrInvalidPolicy, err)
		}
		if prev, dup := registered[pr.Path]; dup {
			return fmt.Errorf("%w: protected_routes: %s registered for both %s and %s", ErrInvalidPolicy, pr.Path, prev, pr.Role)
		}
		registered[pr.Path] = pr.Role
	}

	for route, perm := range p.RoutePermissions {
		if _, ok := ParsePermission(string(perm)); !ok {
			return fmt.Errorf("%w: route_permissions[%s]: unknown permission %q", ErrInvalidPolicy, route, perm)
		}
		if err := validatePath(route); err != nil {
			return fmt.Errorf("%w: route_permissions: %v", ErrInvalidPolicy, err)
		}
		role, ok := registered[route]
		if !ok {
			return fmt.Errorf("%w: route_permissions[%s]: route is not a protected route", ErrInvalidPolicy, route)
		}
		if role != RoleAdmin {
			return fmt.Errorf("%w: route_permissions[%s]: route is registered for %s, not admin", ErrInvalidPolicy, route, role)
		}
	}

	return nil
}

// RoutesFor returns the protected routes registered for role, sorted by path.
func (p *Policy) RoutesFor(role Role) []string {
	var routes []string
	for _, pr := range p.ProtectedRoutes {
		if pr.Role == role {
			routes = append(routes, pr.Path)
		}
	}
	sort.Strings(routes)
	return routes
}

// RoleFor returns the role a protected route is registered for.
func (p *Policy) RoleFor(route string) (Role, bool) {
	for _, pr := range p.ProtectedRoutes {
		if pr.Path == route {
			return pr.Role, true
		}
	}
	return "", false
}

func validatePath(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q must be absolute", path)
	}
	return nil
}
