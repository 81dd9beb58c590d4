package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/signmaker/internal/api/handlers"
	"github.com/cloo-solutions/signmaker/internal/api/middleware"
	"github.com/cloo-solutions/signmaker/internal/config"
	"github.com/cloo-solutions/signmaker/internal/jobs"
	"github.com/cloo-solutions/signmaker/internal/logging"
	"github.com/cloo-solutions/signmaker/internal/metrics"
	"github.com/cloo-solutions/signmaker/internal/prompt"
	"github.com/cloo-solutions/signmaker/internal/provider"
	"github.com/cloo-solutions/signmaker/internal/repository"
	"github.com/cloo-solutions/signmaker/internal/server"
	"github.com/cloo-solutions/signmaker/internal/service"
	"github.com/cloo-solutions/signmaker/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		Long:  "Start the signmaker chat server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides SIGNMAKER_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic Postgres migrations on startup")

	return cmd
}

// Server is the wired HTTP surface plus its background work.
type Server struct {
	Handler http.Handler
	Metrics *metrics.StreamMetrics
	sweeper *jobs.Worker
}

// NewServer wires services, handlers and middleware on top of store.
func NewServer(cfg *config.Config, store *repository.Store, logger *zap.Logger) (*Server, error) {
	templates, err := prompt.LoadTemplates(cfg.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	llm, err := provider.NewClient(provider.Config{
		APIKey:  cfg.ProviderAPIKey,
		BaseURL: cfg.ProviderBaseURL,
		Model:   cfg.ProviderModel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider client: %w", err)
	}

	identity := service.NewIdentityService(store.Tokens, &service.DefaultUUIDGenerator{})
	assembler := service.NewContextAssembler(identity, store.Memories, store.Memberships, logger)
	chat := service.NewChatService(assembler, llm, templates, logger)

	streamMetrics := metrics.NewStreamMetrics()
	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	handler := server.NewRouter(server.RouterConfig{
		ChatHandler:   handlers.NewChatHandler(chat, streamMetrics, logger),
		HealthHandler: handlers.NewHealthHandler(store),
		Metrics:       streamMetrics.Handler(),
		RateLimiter:   limiter,
		CORSOrigin:    cfg.CORSOrigin,
		Logger:        logger,
	})

	srv := &Server{Handler: handler, Metrics: streamMetrics}
	if cfg.TokenSweepInterval > 0 {
		sweeper := jobs.NewTokenSweeper(identity, jobs.DefaultTokenGrace, logger)
		srv.sweeper = jobs.NewWorker("token-sweeper", sweeper, cfg.TokenSweepInterval, logger)
	}
	return srv, nil
}

// StartBackground launches background workers until ctx ends.
func (s *Server) StartBackground(ctx context.Context) {
	if s.sweeper != nil {
		go s.sweeper.Start(ctx)
	}
}

// StopBackground stops workers started by StartBackground.
func (s *Server) StopBackground() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.HasSentry() {
		// 10% sampling in production, everything elsewhere
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		}, logger)
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		} else {
			defer shutdownTelemetry()
		}
	}

	if !cfg.HasProvider() {
		return errors.New("SIGNMAKER_PROVIDER_API_KEY is not configured")
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	store, err := openStore(ctx, cfg, !noMigrate, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	app, err := NewServer(cfg, store, logger)
	if err != nil {
		return err
	}
	app.StartBackground(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		app.StopBackground()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	app.StopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
