package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rungomx/server/internal/api"
	"github.com/rungomx/server/internal/api/handlers"
	"github.com/rungomx/server/internal/api/middleware"
	"github.com/rungomx/server/internal/audit"
	"github.com/rungomx/server/internal/auth"
	"github.com/rungomx/server/internal/config"
	"github.com/rungomx/server/internal/domain/groups"
	"github.com/rungomx/server/internal/domain/redirects"
	"github.com/rungomx/server/internal/domain/users"
	"github.com/rungomx/server/internal/email"
	"github.com/rungomx/server/internal/i18n"
	"github.com/rungomx/server/internal/jobs"
	"github.com/rungomx/server/internal/metrics"
	"github.com/rungomx/server/internal/ratelimit"
	"github.com/rungomx/server/internal/storage/postgres"
	"github.com/rungomx/server/internal/telemetry"
)

const sessionIssuer = "rungomx"

func newServeCommand() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the RunGoMX HTTP server",
		Long: `Start the RunGoMX HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables
- Start the River workers for cleanup and notification jobs
- Serve the registration API under /api/v1 and localized pages
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), host, port)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "server port (default: 8080)")
	return cmd
}

func runServer(parent context.Context, host string, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("environment", cfg.Environment).Msg("starting RunGoMX server")

	metrics.Init(Version, GitCommit, BuildDate)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	poolCtx, poolCancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := postgres.NewPool(poolCtx, cfg.Database)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	// Collect pool metrics every 15 seconds
	dbCollector := metrics.NewDBCollector(pool)
	collectorCtx, collectorCancel := context.WithCancel(ctx)
	go dbCollector.Start(collectorCtx, 15*time.Second)
	defer collectorCancel()
	defer dbCollector.Stop()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}

	sessionKey, err := auth.DeriveSessionKey([]byte(cfg.Auth.SessionSecret))
	if err != nil {
		return fmt.Errorf("derive session key: %w", err)
	}
	csrfKey, err := resolveCSRFKey(cfg.Auth)
	if err != nil {
		return fmt.Errorf("derive csrf key: %w", err)
	}
	authenticator := auth.NewAuthenticator(
		auth.NewJWTManager(sessionKey, cfg.Auth.SessionTTL, sessionIssuer),
		repo.Sessions(),
	)

	mailer, err := email.NewService(cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("email service: %w", err)
	}
	if !mailer.Enabled() {
		logger.Warn().Msg("RESEND_API_KEY not set, account emails are logged only")
	}

	riverClient, err := newRiverClient(pool, cfg, repo, mailer)
	if err != nil {
		return fmt.Errorf("river client: %w", err)
	}

	auditLogger := audit.NewLogger(logger)
	limiter := ratelimit.NewLimiter(repo.RateLimits())

	groupsService := groups.NewService(repo.Groups(), limiter, auditLogger, groups.Config{
		MaxMembers: cfg.Groups.MaxMembers,
		CreateLimit: ratelimit.Policy{
			Action: groups.ActionCreate,
			Limit:  cfg.RateLimit.GroupCreateLimit,
			Window: cfg.RateLimit.GroupCreateWindow,
		},
	}, logger)
	redirectsService := redirects.NewService(repo.Redirects(), cfg.Redirects.MaxHops, logger)
	notifier := jobs.NewQueuedNotifier(riverClient, jobs.NewRetryPolicy(cfg.Jobs.RetryNotifications))
	usersService := users.NewService(repo.Users(), notifier, auditLogger, logger)

	catalog, err := i18n.NewEmbeddedCatalog(cfg.I18n.DefaultLocale, logger)
	if err != nil {
		return fmt.Errorf("message catalog: %w", err)
	}

	httpLimiter := middleware.NewRateLimiter(cfg.RateLimit)
	defer httpLimiter.Stop()

	handler := api.NewRouter(api.Deps{
		Config:        cfg,
		Logger:        logger,
		Authenticator: authenticator,
		RateLimiter:   httpLimiter,
		Negotiator:    catalog.Negotiator(),
		CSRFKey:       csrfKey,
		Groups:        groupsService,
		Redirects:     redirectsService,
		Messages:      catalog,
		Users:         usersService,
		Health:        handlers.NewHealthChecker(pool, riverClient, Version, GitCommit),
		Version:       Version,
		GitCommit:     GitCommit,
		BuildDate:     BuildDate,
	})

	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river workers failed to start: %w", err)
	}
	logger.Info().Msg("river background job workers started")
	defer stopRiver(riverClient, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		MaxHeaderBytes:    1 << 20,          // 1 MB max header size
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// resolveCSRFKey prefers CSRF_KEY and falls back to a key derived from the session
// secret.
func resolveCSRFKey(cfg config.AuthConfig) ([]byte, error) {
	if cfg.CSRFKey != "" {
		return auth.DeriveCSRFKey([]byte(cfg.CSRFKey))
	}
	return auth.DeriveCSRFKey([]byte(cfg.SessionSecret))
}

func newRiverClient(pool *pgxpool.Pool, cfg config.Config, repo *postgres.Repository, mailer jobs.AccountMailer) (*river.Client[pgx.Tx], error) {
	jobLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: config.SlogLevel(cfg.Logging)}))
	workers := jobs.NewWorkers(jobs.Deps{
		Store:              repo.Maintenance(),
		Mailer:             mailer,
		Logger:             jobLogger,
		RateLimitRetention: cfg.RateLimit.CounterRetention,
		AuditRetention:     cfg.Jobs.AuditRetention,
	})
	return jobs.NewClient(
		pool,
		cfg.Jobs,
		workers,
		jobLogger,
		[]rivertype.Hook{metrics.NewRiverMetricsHook()},
		jobs.NewPeriodicJobs(cfg.Jobs.CleanupInterval),
	)
}

func stopRiver(client *river.Client[pgx.Tx], logger zerolog.Logger) {
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Stop(stopCtx); err != nil {
		logger.Error().Err(err).Msg("river workers shutdown error")
		return
	}
	logger.Info().Msg("river workers stopped")
}
