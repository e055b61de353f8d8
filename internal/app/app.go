package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"licensebridge/internal/config"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/licensing"
	custommw "licensebridge/internal/middleware"
	"licensebridge/internal/security"
	"licensebridge/internal/services"
	handlers "licensebridge/internal/transport/http"
)

const (
	// Version is stamped into health responses and the OTel resource.
	Version = "1.0.0"

	serviceName = "license-bridge"
)

// Application is the assembled bridge server.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Reconciler    *licensing.Reconciler
	Provisioning  services.ProvisioningService
}

// NewApplication loads configuration and wires every component.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig wires the application around an already
// validated configuration. Used by tests and the CLI.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("service", serviceName),
		slog.String("version", Version))

	otelProviders, err := infrastructure.InitializeOTel(serviceName, Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, err
	}
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the remote client, reconciler and the
// provisioning service.
func (a *Application) initializeServices() error {
	baseURL, err := a.Config.Remote.BaseURL()
	if err != nil {
		return err
	}
	teamID, err := a.Config.Remote.NormalizedTeamID()
	if err != nil {
		return err
	}
	apiKey, err := security.ResolveAPIKey(
		a.Config.Remote.APIKey,
		a.Config.Remote.APIKeyFile,
		a.Config.Remote.APIKeyPassphrase,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve api key: %w", err)
	}
	if apiKey == "" {
		return config.ErrAPIKeyMissing
	}

	metrics, err := licensing.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create licensing metrics: %w", err)
	}

	client := licensing.NewClient(licensing.ClientConfig{
		BaseURL:        baseURL,
		TeamID:         teamID,
		APIKey:         apiKey,
		Timeout:        a.Config.Remote.Timeout,
		CreateStatus:   a.Config.Remote.CreateStatus,
		RecreateStatus: a.Config.Remote.RecreateStatus,
		UserAgent:      a.Config.Remote.UserAgent,
	}, a.Logger, metrics)

	a.Reconciler = licensing.NewReconciler(client, a.Logger, metrics, a.Config.Provisioning.ServicePrefix)
	a.Provisioning = services.NewProvisioningService(a.Reconciler, a.Logger, a.Config.Provisioning.Options)

	return nil
}

// setupRouter configures the HTTP router. Middleware order: RequestID,
// RealIP, StructuredLogger, Recoverer, then rate limiting.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))

	if a.Config.Security.RateLimit.Enabled {
		r.Use(custommw.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	healthHandler := handlers.NewHealthHandler(Version)
	r.Get("/healthz", healthHandler.HealthCheck)
	r.Handle("/metrics", a.OTelProviders.MetricsHandler())

	provisionHandler := handlers.NewProvisionHandler(a.Provisioning, a.Logger)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(chimw.Timeout(a.Config.Server.ReadTimeout))

		r.Get("/version", healthHandler.Version)
		r.Mount("/accounts", provisionHandler.Routes())
		r.Get("/connection/test", provisionHandler.TestConnection)
	})

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start begins serving. A listener error cancels the supplied context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting server",
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop gracefully shuts the server and metrics pipeline down.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down metrics", slog.String("error", err.Error()))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.ErrorContext(ctx, "error closing log file", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "shutdown complete")
	return nil
}

// Run serves until the process receives SIGINT or SIGTERM.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
