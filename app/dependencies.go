package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/config"
	"github.com/routelab/ai-gateway/handlers"
	"github.com/routelab/ai-gateway/middleware"
	"github.com/routelab/ai-gateway/repositories"
	"github.com/routelab/ai-gateway/repositories/postgres"
	"github.com/routelab/ai-gateway/services/catalog"
	"github.com/routelab/ai-gateway/services/chat"
	"github.com/routelab/ai-gateway/services/maintenance"
	"github.com/routelab/ai-gateway/services/providers"
	"github.com/routelab/ai-gateway/services/providers/mockai"
	"github.com/routelab/ai-gateway/services/providers/ollama"
	"github.com/routelab/ai-gateway/services/providers/openai"
	"github.com/routelab/ai-gateway/services/routing"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Catalog   repositories.CatalogRepository
	Requests  repositories.RequestRepository
	TxManager repositories.TransactionManager

	// Domain services
	CatalogService   *catalog.Service
	ProviderRegistry *providers.Registry
	LoadEstimator    *routing.LoadEstimator
	Engine           *routing.Engine
	Executor         *routing.FailoverExecutor
	ChatService      *chat.Service
	Scheduler        *maintenance.Scheduler

	// HTTP layer
	ChatHandler     *handlers.ChatHandler
	DecisionHandler *handlers.DecisionHandler
	ProviderHandler *handlers.ProviderHandler
	HealthHandler   *handlers.HealthHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies.
// Initialization is phased so a failure reports which layer broke.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := deps.initCatalog(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initRouting(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize routing: %w", err)
	}

	if err := deps.initMaintenance(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize maintenance: %w", err)
	}

	deps.initAuth(cfg)
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection, schema and seed data
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	// Test the connection
	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := d.DB.SeedCatalog(ctx); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() error {
	repos := d.RepoFactory.NewRepositories()

	d.Catalog = repos.Catalog
	d.Requests = repos.Requests
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
	return nil
}

// initCatalog builds the catalog service and loads the first snapshot
func (d *Dependencies) initCatalog(ctx context.Context, cfg *config.Config) error {
	creds := catalog.Credentials{}
	if cfg.Providers.OpenAIAPIKey != "" {
		creds["OpenAI"] = cfg.Providers.OpenAIAPIKey
	}

	d.CatalogService = catalog.NewService(d.Catalog, d.TxManager, creds, d.Logger)
	if err := d.CatalogService.Load(ctx); err != nil {
		return fmt.Errorf("initial catalog load failed: %w", err)
	}

	snap := d.CatalogService.Snapshot()
	d.Logger.Info("catalog loaded",
		zap.Int("providers", len(snap.Providers())),
		zap.Int("models", snap.ModelCount()))
	return nil
}

// initProviders registers the provider client factories.
// Factory names must match the provider names stored in the catalog.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry(d.Logger)

	if err := registry.RegisterFactory("OpenAI", openai.Factory); err != nil {
		return err
	}
	if err := registry.RegisterFactory("Ollama", ollama.Factory); err != nil {
		return err
	}
	if cfg.Providers.MockEnabled {
		if err := registry.RegisterFactory("MockAI", mockai.Factory); err != nil {
			return err
		}
	}

	if cfg.Providers.OpenAIAPIKey == "" {
		d.Logger.Warn("no OpenAI API key configured, OpenAI requests will fail")
	}

	d.ProviderRegistry = registry
	return nil
}

// initRouting builds the load estimator, decision engine and failover executor
func (d *Dependencies) initRouting(cfg *config.Config) error {
	d.LoadEstimator = routing.NewLoadEstimator(d.Requests, d.Catalog, cfg.Routing.LoadCacheTTL, d.Logger)

	overlay, err := config.LoadScoringOverlay(cfg.Routing.ScoringFile)
	if err != nil {
		return fmt.Errorf("failed to load scoring overlay: %w", err)
	}

	engine, err := routing.NewEngine(routing.EngineConfigFrom(cfg.Routing, overlay), d.CatalogService, d.LoadEstimator, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create decision engine: %w", err)
	}
	d.Engine = engine

	d.Executor = routing.NewFailoverExecutor(d.ProviderRegistry, cfg.Routing.MaxFallbacks, d.Logger)
	d.ChatService = chat.NewService(d.Engine, d.Executor, d.CatalogService, d.Requests, d.Logger)

	d.Logger.Info("routing engine initialized",
		zap.Float64("min_score_threshold", d.Engine.Threshold()),
		zap.Int("max_fallbacks", cfg.Routing.MaxFallbacks))
	return nil
}

// initMaintenance starts the cron scheduler when enabled
func (d *Dependencies) initMaintenance(cfg *config.Config) error {
	if !cfg.Maintenance.Enabled {
		d.Logger.Info("maintenance scheduler disabled")
		return nil
	}

	scheduler, err := maintenance.NewScheduler(cfg.Maintenance, d.Requests, d.LoadEstimator, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create maintenance scheduler: %w", err)
	}
	scheduler.Start()
	d.Scheduler = scheduler
	return nil
}

// initAuth wires the admin token validator.
// Without a secret, admin routes stay closed via the reject-all validator.
func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("admin auth not configured, admin endpoints disabled")
		d.AuthMiddleware = middleware.NewAuthMiddleware(&rejectAllValidator{}, d.Logger)
		return
	}
	validator := middleware.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("admin auth initialized", zap.String("issuer", cfg.Auth.JWTIssuer))
}

// initHandlers builds the HTTP handler layer on top of the services
func (d *Dependencies) initHandlers() {
	d.ChatHandler = handlers.NewChatHandler(d.ChatService, d.Logger)
	d.DecisionHandler = handlers.NewDecisionHandler(d.ChatService, d.Engine, d.CatalogService, d.Logger)
	d.ProviderHandler = handlers.NewProviderHandler(d.CatalogService, d.ProviderRegistry, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.Logger)
}

// rejectAllValidator rejects all tokens (used when no JWT secret is configured)
type rejectAllValidator struct{}

func (*rejectAllValidator) ValidateToken(context.Context, string) (*middleware.Claims, error) {
	return nil, fmt.Errorf("authentication not configured")
}

// Close gracefully shuts down all dependencies in reverse init order
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Scheduler != nil {
		d.Scheduler.Stop()
		d.Logger.Info("maintenance scheduler stopped")
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
