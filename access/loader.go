package access

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_policy.yaml
var defaultPolicyYAML []byte

// policyFile is the YAML layout of a route policy file.
type policyFile struct {
	LoginPath        string            `yaml:"login_path"`
	RoleHome         map[string]string `yaml:"role_home"`
	PermissionRoutes map[string]string `yaml:"permission_routes"`
	RoutePermissions map[string]string `yaml:"route_permissions"`
	ProtectedRoutes  []struct {
		Path string `yaml:"path"`
		Role string `yaml:"role"`
	} `yaml:"protected_routes"`
}

// DefaultPolicy returns the built-in route policy.
func DefaultPolicy() (*Policy, error) {
	return ParsePolicy(defaultPolicyYAML)
}

// LoadPolicy reads a route policy from a YAML file. An empty path selects the
// built-in policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}

	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML route policy.
func ParsePolicy(data []byte) (*Policy, error) {
	var raw policyFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal policy: %w", err)
	}

	policy := &Policy{
		LoginPath:        raw.LoginPath,
		RoleHome:         make(map[Role]string, len(raw.RoleHome)),
		PermissionRoutes: make(map[Permission]string, len(raw.PermissionRoutes)),
		RoutePermissions: make(map[string]Permission, len(raw.RoutePermissions)),
		ProtectedRoutes:  make([]ProtectedRoute, 0, len(raw.ProtectedRoutes)),
	}

	for role, home := range raw.RoleHome {
		policy.RoleHome[Role(role)] = home
	}
	for perm, route := range raw.PermissionRoutes {
		policy.PermissionRoutes[Permission(perm)] = route
	}
	for route, perm := range raw.RoutePermissions {
		policy.RoutePermissions[route] = Permission(perm)
	}
	for _, pr := range raw.ProtectedRoutes {
		policy.ProtectedRoutes = append(policy.ProtectedRoutes, ProtectedRoute{
			Path: pr.Path,
			Role: Role(pr.Role),
		})
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return policy, nil
}
