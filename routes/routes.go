package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/app"
	"github.com/upb/paper-archive/config"
	"github.com/upb/paper-archive/handlers"
	"github.com/upb/paper-archive/metrics"
)

const defaultRequestTimeout = 60 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if deps.Config.Observability.MetricsEnabled {
		r.Use(metrics.Middleware)
		r.Handle("/metrics", metrics.Handler())
	}

	health := handlers.NewHealthHandler(deps.DB.DB, deps.SessionPinger, deps.Logger)
	accessHandler := handlers.NewAccessHandler(deps.GateMiddleware, deps.Logger)
	accounts := handlers.NewAccountHandler(deps.Accounts, deps.Policy, deps.Logger)
	presence := handlers.NewPresenceHandler(deps.Presence, deps.OriginPatterns(), deps.Logger)

	// Presence websockets stay outside the request timeout
	timeout := chimw.Timeout(requestTimeout(deps.Config))

	r.Group(func(r chi.Router) {
		r.Use(timeout)

		// Health check endpoints
		r.Get("/healthz", health.HandleHealth)
		r.Get("/readyz", health.HandleReadiness)

		// Google sign-in
		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", handlers.AuthLoginHandler(deps))
			r.Get("/callback", handlers.AuthCallbackHandler(deps))
			r.Get("/logout", handlers.AuthLogoutHandler(deps))
			r.Post("/logout", handlers.AuthLogoutHandler(deps))
		})

		// Gated pages
		for _, route := range deps.Policy.ProtectedRoutes {
			r.With(deps.GateMiddleware.Protect(route.Role)).Get(route.Path, accessHandler.HandlePage)
		}
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(timeout)

			r.Route("/access", func(r chi.Router) {
				r.Get("/policy", accessHandler.HandleGetPolicy)
				r.Post("/evaluate", accessHandler.HandleEvaluate)
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireAuth)
				r.Get("/me", accounts.HandleGetCurrentUser)
			})

			// Superadmins pass the permission check without holding it
			r.Route("/admin/accounts", func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireAuth)
				r.Use(deps.AuthMiddleware.RequirePermission(access.PermManageAccounts))
				r.Get("/", accounts.HandleListAccounts)
				r.Put("/{id}/access", accounts.HandleAssignAccess)
				r.Get("/{id}/audit", accounts.HandleAuditTrail)
			})
		})

		r.Route("/papers/{paperID}", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/presence", presence.HandlePresence)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}

func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.RequestTimeout > 0 {
		return cfg.Server.RequestTimeout
	}
	return defaultRequestTimeout
}
