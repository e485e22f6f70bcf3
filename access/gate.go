package access

// Evaluate decides whether identity may render requestedRoute, a page registered
// for expectedRole. Rules are applied in order and the first match wins:
//
//  1. no auth token: redirect to the login page
//  2. role differs from expectedRole: redirect to the role's home, or to login
//     when the role is absent or has no home
//  3. admin on a route that requires a permission they lack: redirect to the
//     route of their first permission that has one, or to login
//  4. otherwise allow
//
// Evaluate has no side effects; identical inputs always produce the same Decision.
func (p *Policy) Evaluate(identity Identity, requestedRoute string, expectedRole Role) Decision {
	if !identity.HasToken() {
		return RedirectTo(p.loginPath(), ReasonMissingToken)
	}

	if identity.Role != expectedRole {
		if identity.HasRole() {
			if home, ok := p.HomeFor(identity.Role); ok {
				return RedirectTo(home, ReasonRoleMismatch)
			}
		}
		return RedirectTo(p.loginPath(), ReasonUnknownRole)
	}

	if identity.Role == RoleAdmin {
		required, ok := p.RequiredPermission(requestedRoute)
		if ok && !identity.Permissions.Contains(required) {
			// First resolvable permission in stored order. The precedence is
			// arbitrary; it only avoids a redirect loop to login.
			for _, perm := range identity.Permissions.Slice() {
				if route, ok := p.RouteFor(perm); ok {
					return RedirectTo(route, ReasonMissingPermission)
				}
			}
			return RedirectTo(p.loginPath(), ReasonNoFallbackRoute)
		}
	}

	return Allow(ReasonAuthorized)
}
