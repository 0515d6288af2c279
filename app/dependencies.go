package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/upb/faculty-auth/config"
	"github.com/upb/faculty-auth/handlers"
	"github.com/upb/faculty-auth/internal/observability"
	"github.com/upb/faculty-auth/jwks"
	"github.com/upb/faculty-auth/middleware"
	"github.com/upb/faculty-auth/repositories"
	"github.com/upb/faculty-auth/repositories/memory"
	"github.com/upb/faculty-auth/repositories/postgres"
	"github.com/upb/faculty-auth/services/audit"
	"github.com/upb/faculty-auth/services/auth"
	"github.com/upb/faculty-auth/services/catalog"
	"github.com/upb/faculty-auth/services/credentials"
	"github.com/upb/faculty-auth/services/refreshtoken"
	"github.com/upb/faculty-auth/tenancy"
	"github.com/upb/faculty-auth/tokens"
	"go.uber.org/zap"
)

// auditStopTimeout bounds how long Close waits for queued audit events
const auditStopTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB // nil with the memory driver
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Exactly one of these is set, depending on the database driver
	RepoFactory *postgres.RepositoryFactory
	MemoryStore *memory.Store

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Tenancy and audit
	Enforcer *tenancy.Enforcer
	Audit    *audit.AuditService

	// Tokens
	Issuer       *tokens.Issuer
	Validator    middleware.TokenValidator
	RefreshStore *refreshtoken.Store

	// Services
	AuthService *auth.Service
	Catalog     *catalog.Service

	// HTTP
	AuthMiddleware  *middleware.AuthMiddleware
	RateLimiter     *middleware.RateLimiter
	AuthHandler     *handlers.AuthHandler
	CatalogHandler  *handlers.CatalogHandler
	ActivityHandler *handlers.ActivityHandler
	HealthHandler   *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := deps.initAudit(cfg); err != nil {
		deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize audit: %w", err)
	}

	deps.initRepositories()

	if err := deps.initTokens(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize tokens: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := EnsureSuperadmin(ctx, cfg.Bootstrap, cfg.Auth.BcryptCost, deps.Repos.Principals, logger); err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}

	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("database_driver", cfg.Database.Driver))
	return deps, nil
}

// initStorage opens and migrates PostgreSQL, or creates the in-memory store
// for the memory driver
func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.Driver == "memory" {
		d.MemoryStore = memory.NewStore()
		d.TxManager = d.MemoryStore.Transactions
		d.Logger.Warn("using in-memory storage, data is lost on restart")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(ctx, cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}
	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.TxManager = factory.GetTransactionManager()
	return nil
}

// initAudit starts the audit writer. It needs only the audit repository,
// which is not tenant scoped, so it comes up before the enforcer.
func (d *Dependencies) initAudit(cfg *config.Config) error {
	var auditRepo repositories.AuditRepository
	if d.MemoryStore != nil {
		auditRepo = d.MemoryStore.AuditLogs
	} else {
		auditRepo = postgres.NewAuditRepository(d.DB, d.Logger)
	}

	d.Audit = audit.NewAuditService(auditRepo, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
	})
	return d.Audit.Start()
}

// initRepositories builds the repository set behind the tenant enforcer
func (d *Dependencies) initRepositories() {
	d.Enforcer = tenancy.NewEnforcer(d.Logger, d.Metrics, d.Audit)
	if d.MemoryStore != nil {
		d.Repos = d.MemoryStore.NewRepositories(d.Enforcer)
	} else {
		d.Repos = d.RepoFactory.NewRepositories(d.Enforcer)
	}
	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initTokens(cfg *config.Config) error {
	keys, err := tokens.LoadKeyMaterial(cfg.Auth, cfg.IsProduction(), d.Logger)
	if err != nil {
		return err
	}

	d.Issuer, err = tokens.NewIssuer(keys, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.AccessTokenTTL,
		tokens.WithLogger(d.Logger))
	if err != nil {
		return err
	}

	// Requests are authenticated against the local key unless a remote key
	// set is configured
	d.Validator = d.Issuer
	if cfg.Auth.JWKSURL != "" {
		d.Validator = jwks.NewVerifier(jwks.Config{
			URL:      cfg.Auth.JWKSURL,
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		}, d.Logger)
		d.Logger.Info("validating access tokens with remote key set",
			zap.String("jwks_url", cfg.Auth.JWKSURL))
	}

	d.RefreshStore = refreshtoken.NewStore(d.Repos.RefreshTokens, d.TxManager, cfg.Auth.RefreshTokenTTL, d.Logger,
		refreshtoken.WithMetrics(d.Metrics),
		refreshtoken.WithAuditor(d.Audit))
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) error {
	verifier, err := credentials.NewBcryptVerifier(d.Repos.Principals, cfg.Auth.BcryptCost, d.Logger)
	if err != nil {
		return err
	}

	d.AuthService = auth.NewService(verifier, d.Repos.Principals, d.Issuer, d.RefreshStore, d.Audit, d.Metrics, d.Logger)
	d.Catalog = catalog.NewService(d.Repos.Courses, d.Repos.Students, d.Enforcer, d.Logger)
	return nil
}

func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Validator, d.Metrics, d.Logger)
	if cfg.RateLimit.Enabled {
		d.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, d.Logger)
	}

	d.AuthHandler = handlers.NewAuthHandler(d.AuthService, d.Issuer, d.Logger)
	d.CatalogHandler = handlers.NewCatalogHandler(d.Catalog, d.Logger)
	d.ActivityHandler = handlers.NewActivityHandler(d.Repos.AuditLogs, d.Logger)

	var sqlDB *sql.DB
	if d.DB != nil {
		sqlDB = d.DB.DB
	}
	checks := []handlers.ReadinessCheck{{
		Name: "audit",
		Check: func(context.Context) error {
			if !d.Audit.GetStats().Started {
				return fmt.Errorf("audit service not running")
			}
			return nil
		},
	}}
	if remote, ok := d.Validator.(*jwks.Verifier); ok {
		checks = append(checks, handlers.ReadinessCheck{Name: "jwks", Check: remote.Ready})
	}
	d.HealthHandler = handlers.NewHealthHandler(sqlDB, d.Logger, checks...)
}

// PurgeExpiredTokens deletes refresh tokens past their retention window
func (d *Dependencies) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return d.RefreshStore.PurgeExpired(ctx, d.Config.Auth.PurgeRetention)
}

func (d *Dependencies) closeStorage() {
	if d.RepoFactory == nil {
		return
	}
	if err := d.RepoFactory.Close(); err != nil {
		d.Logger.Error("failed to close database", zap.Error(err))
		return
	}
	d.Logger.Info("database connection closed")
}

// Close gracefully shuts down all dependencies. Queued audit events are
// flushed before the database is closed.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil && d.Audit.GetStats().Started {
		if err := d.Audit.Stop(auditStopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
