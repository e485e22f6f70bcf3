package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/auth"
	"github.com/upb/paper-archive/config"
	"github.com/upb/paper-archive/googleauth"
	"github.com/upb/paper-archive/middleware"
	"github.com/upb/paper-archive/presence"
	"github.com/upb/paper-archive/repositories"
	"github.com/upb/paper-archive/repositories/postgres"
	"github.com/upb/paper-archive/services"
	"github.com/upb/paper-archive/services/audit"
	"github.com/upb/paper-archive/session"
	"github.com/upb/paper-archive/token"
	"go.uber.org/zap"
)

const auditStopTimeout = 5 * time.Second

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Redis  *redis.Client
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	AuditLogs repositories.AuditRepository
	TxManager repositories.TransactionManager

	// Access
	Policy        *access.Policy
	Tokens        *token.Manager
	Sessions      session.Store
	SessionPinger Pinger // nil when sessions keep no server-side state

	// Services
	Accounts *services.AccountService
	Audit    *audit.AuditService
	Presence *presence.Hub

	// HTTP
	authHandler    *auth.Handler
	AuthMiddleware *middleware.AuthMiddleware
	GateMiddleware *middleware.GateMiddleware
}

// AuthHandler returns the auth handler for route wiring (implements handlers.AuthDeps)
func (d *Dependencies) AuthHandler() *auth.Handler {
	return d.authHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := newDependencies(ctx, cfg, logger, factory)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

func newDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, factory *postgres.RepositoryFactory) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initAccess(ctx, cfg); err != nil {
		_ = deps.closeRedis()
		return nil, fmt.Errorf("failed to initialize access: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		_ = deps.closeRedis()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase verifies the connection and creates the schema
func (d *Dependencies) initDatabase(ctx context.Context) error {
	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		return err
	}

	d.Logger.Info("database connection established",
		zap.String("connection", d.Config.Database.LogString()))
	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.AuditLogs = repos.AuditLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initAccess loads the route policy and the identity store the gate reads
func (d *Dependencies) initAccess(ctx context.Context, cfg *config.Config) error {
	policy, err := access.LoadPolicy(cfg.Access.PolicyFile)
	if err != nil {
		return err
	}
	d.Policy = policy

	tokens, err := token.NewManager(token.Config{
		SigningKey: cfg.Session.SigningKey,
		Issuer:     cfg.Session.Issuer,
		TTL:        cfg.Session.TTL,
	})
	if err != nil {
		return err
	}
	d.Tokens = tokens

	cookie := session.CookieOptions{Secure: cfg.Session.CookieSecure, TTL: cfg.Session.TTL}
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		client, err := session.NewRedisClient(ctx, cfg.Session.RedisURL)
		if err != nil {
			return err
		}
		store := session.NewRedisStore(client, cookie, d.Logger)
		d.Redis = client
		d.Sessions = store
		d.SessionPinger = store
	default:
		d.Sessions = session.NewTokenStore(tokens, cookie, d.Logger)
	}

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Sessions, tokens, d.Logger)
	d.GateMiddleware = middleware.NewGateMiddleware(policy, d.Sessions, d.Logger)

	d.Logger.Info("access gate initialized",
		zap.String("session_store", cfg.Session.Store),
		zap.Int("protected_routes", len(policy.ProtectedRoutes)))
	return nil
}

// initServices starts the audit workers and builds the account service
func (d *Dependencies) initServices(cfg *config.Config) error {
	d.Audit = audit.NewAuditService(d.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	if err := d.Audit.Start(); err != nil {
		return err
	}

	d.Accounts = services.NewAccountService(d.Users, d.AuditLogs, d.TxManager, cfg.Google.SuperAdminEmails, d.Logger)
	d.Presence = presence.NewHub(d.Logger)
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Google.ClientID == "" {
		d.Logger.Warn("google sign-in not configured, auth endpoints disabled")
		return
	}

	exchanger := googleauth.NewExchanger(googleauth.ExchangerConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURI,
		HostedDomain: cfg.Google.HostedDomain,
	})
	validator := googleauth.NewValidator(googleauth.Config{
		ClientID:     cfg.Google.ClientID,
		HostedDomain: cfg.Google.HostedDomain,
		CacheTTL:     time.Hour,
		HTTPTimeout:  10 * time.Second,
	})

	d.authHandler = auth.NewHandler(cfg, auth.Deps{
		Exchanger: exchanger,
		Validator: validator,
		Accounts:  d.Accounts,
		Tokens:    d.Tokens,
		Store:     d.Sessions,
		Policy:    d.Policy,
		Auditor:   d.Audit,
	}, d.Logger)
	d.Logger.Info("auth handler initialized")
}

// OriginPatterns returns the host patterns allowed to open websockets,
// derived from the CORS origins.
func (d *Dependencies) OriginPatterns() []string {
	patterns := make([]string, 0, len(d.Config.CORS.AllowedOrigins))
	for _, origin := range d.Config.CORS.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

func (d *Dependencies) closeRedis() error {
	if d.Redis == nil {
		return nil
	}
	err := d.Redis.Close()
	d.Redis = nil
	return err
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain pending audit events before the database goes away
	if d.Audit != nil {
		if err := d.Audit.Stop(auditStopTimeout); err != nil && !errors.Is(err, audit.ErrNotRunning) {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if err := d.closeRedis(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
