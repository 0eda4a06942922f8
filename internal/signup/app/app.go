package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pixelgrid/signupmill/internal/signup/domain"
	httpapi "github.com/pixelgrid/signupmill/internal/signup/http"
	"github.com/pixelgrid/signupmill/internal/signup/mailbox"
	"github.com/pixelgrid/signupmill/internal/signup/provider"
	"github.com/pixelgrid/signupmill/internal/signup/service"
	"github.com/pixelgrid/signupmill/internal/signup/store"
	"github.com/pixelgrid/signupmill/internal/signup/store/drivers/sqlite"
	"github.com/pixelgrid/signupmill/pkg/broadcast"
	"github.com/pixelgrid/signupmill/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"

	// progressBufferSize is the per-subscriber event buffer. A stalled SSE
	// client starts dropping events past this.
	progressBufferSize = 256
)

// Application encapsulates the signup service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     store.Store
	events *broadcast.Broadcaster[domain.ProgressEvent]

	// Worker pipeline
	mailboxClient  *mailbox.Client
	providerClient *provider.Client
	credentials    *service.CredentialGenerator
	extractor      *service.LinkExtractor
	launcher       *service.Launcher

	// Workers outlive any one HTTP request; this context spans the process.
	workerCtx    context.Context
	workerCancel context.CancelFunc

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "signup-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.ProviderSignupURL == "" {
		return nil, fmt.Errorf("SIGNUP_PROVIDER_URL is required")
	}
	if cfg.ProviderAPIKey == "" {
		return nil, fmt.Errorf("SIGNUP_PROVIDER_API_KEY is required")
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initPipeline(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("signup service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application. In-flight workers get the
// grace period to reach a terminal state before their context is cancelled.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down signup service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Wait for in-flight signups, then pull the plug on stragglers
	workersDone := make(chan struct{})
	go func() {
		app.launcher.Wait()
		close(workersDone)
	}()
	select {
	case <-workersDone:
	case <-ctx.Done():
		app.logger.Warn("workers still in flight at shutdown deadline",
			"in_flight", app.launcher.InFlight())
	}
	app.workerCancel()

	app.events.Close()

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("signup service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initPipeline wires the worker pipeline: clients, credential generator,
// event broadcaster and the launcher that fans workers out.
func (app *Application) initPipeline() error {
	credentials, err := service.NewCredentialGenerator(app.cfg.MailboxDomains, app.cfg.PasswordLength)
	if err != nil {
		return fmt.Errorf("failed to initialize credential generator: %w", err)
	}
	app.credentials = credentials

	app.mailboxClient = mailbox.NewClient(app.cfg.MailboxBaseURL)
	app.providerClient = provider.NewClient(app.cfg.ProviderSignupURL, app.cfg.ProviderAPIKey, app.cfg.RedirectTo)
	app.extractor = service.NewLinkExtractor()
	app.events = broadcast.New[domain.ProgressEvent](progressBufferSize)

	app.workerCtx, app.workerCancel = context.WithCancel(context.Background())

	workerCfg := service.WorkerConfig{
		PollTimeout:    app.cfg.PollTimeout,
		PollInterval:   app.cfg.PollInterval,
		VerifyAttempts: app.cfg.VerifyAttempts,
		VerifyBackoff:  app.cfg.VerifyBackoff,
	}
	newWorker := func() *service.Worker {
		return service.NewWorker(
			app.db,
			app.mailboxClient,
			app.providerClient,
			app.credentials,
			app.extractor,
			app.events,
			app.logger,
			workerCfg,
		)
	}
	app.launcher = service.NewLauncher(app.workerCtx, newWorker, app.cfg.LaunchDelay, app.logger)

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.cfg.CORSOrigins,
		app.logger,
	)

	// Wire the pipeline to the router
	router.Launcher = app.launcher
	router.Events = app.events
	router.MaxBatch = app.cfg.MaxBatch
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
