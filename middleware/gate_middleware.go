package middleware

import (
	"net/http"

	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/metrics"
	"github.com/upb/paper-archive/session"
	"go.uber.org/zap"
)

// GateMiddleware runs the access gate in front of protected page routes
type GateMiddleware struct {
	policy *access.Policy
	store  session.Store
	logger *zap.Logger
}

// NewGateMiddleware creates a new GateMiddleware
func NewGateMiddleware(policy *access.Policy, store session.Store, logger *zap.Logger) *GateMiddleware {
	return &GateMiddleware{
		policy: policy,
		store:  store,
		logger: logger,
	}
}

// Decide reads the caller's identity once and evaluates route against expectedRole.
// A store failure is treated as an anonymous visitor.
func (m *GateMiddleware) Decide(r *http.Request, route string, expectedRole access.Role) (access.Decision, access.Identity) {
	ctx := r.Context()
	requestID := GetRequestIDFromContext(ctx)

	identity, err := m.store.Snapshot(ctx, r)
	if err != nil {
		m.logger.Error("identity snapshot failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		identity = access.Identity{}
	}

	decision := m.policy.Evaluate(identity, route, expectedRole)
	metrics.RecordDecision(decision)

	m.logger.Debug("access decision",
		zap.String("request_id", requestID),
		zap.String("route", route),
		zap.String("expected_role", string(expectedRole)),
		zap.String("role", string(identity.Role)),
		zap.Stringer("outcome", decision.Outcome),
		zap.String("reason", string(decision.Reason)),
		zap.String("redirect", decision.Path))

	return decision, identity
}

// Protect guards a page registered for expectedRole. Redirect decisions answer
// 302 with the decided path; allowed requests carry the identity in context.
func (m *GateMiddleware) Protect(expectedRole access.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, identity := m.Decide(r, r.URL.Path, expectedRole)
			if !decision.Allowed() {
				http.Redirect(w, r, decision.Path, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// Policy returns the route policy the gate evaluates
func (m *GateMiddleware) Policy() *access.Policy {
	return m.policy
}
