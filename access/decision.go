package access

// Outcome is the kind of decision returned by the gate.
type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeRedirect
)

// String implements fmt.Stringer
func (o Outcome) String() string {
	if o == OutcomeAllow {
		return "allow"
	}
	return "redirect"
}

// Reason explains a decision. It is informational only (logs, metrics, API responses).
type Reason string

const (
	ReasonAuthorized        Reason = "authorized"
	ReasonMissingToken      Reason = "missing_token"
	ReasonRoleMismatch      Reason = "role_mismatch"
	ReasonUnknownRole       Reason = "unknown_role"
	ReasonMissingPermission Reason = "missing_permission"
	ReasonNoFallbackRoute   Reason = "no_fallback_route"
)

// Decision is either Allow or a redirect to Path.
type Decision struct {
	Outcome Outcome
	Path    string
	Reason  Reason
}

// Allow renders the protected content.
func Allow(reason Reason) Decision {
	return Decision{Outcome: OutcomeAllow, Reason: reason}
}

// RedirectTo navigates to path instead of the requested route.
func RedirectTo(path string, reason Reason) Decision {
	return Decision{Outcome: OutcomeRedirect, Path: path, Reason: reason}
}

// Allowed reports whether the decision allows rendering.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}
