package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Aaron408/vercel-authservice/internal/config"
	"github.com/Aaron408/vercel-authservice/internal/database"
	"github.com/Aaron408/vercel-authservice/internal/handler"
	"github.com/Aaron408/vercel-authservice/internal/mailer"
	"github.com/Aaron408/vercel-authservice/internal/middleware"
	apierrors "github.com/Aaron408/vercel-authservice/internal/pkg/errors"
	"github.com/Aaron408/vercel-authservice/internal/pkg/response"
	"github.com/Aaron408/vercel-authservice/internal/repository"
	"github.com/Aaron408/vercel-authservice/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("skip-migrations", false, "do not apply pending migrations on startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Info("Starting auth service",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
		slog.String("password_scheme", cfg.Auth.PasswordScheme),
		slog.String("code_store", cfg.Verification.Store),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	if skip, _ := cmd.Flags().GetBool("skip-migrations"); !skip {
		if err := database.RunMigrations(cfg.Database); err != nil {
			return err
		}
		logger.Info("Database migrations completed")
	}

	deps := map[string]handler.Pinger{"database": db}

	var rdb *database.Redis
	if cfg.Redis.Enabled {
		rdb, err = database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
		deps["redis"] = rdb
		logger.Info("Connected to Redis")
	}

	api, err := buildAuthHandler(cfg, db, rdb, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      newRouter(cfg.Server, api, deps, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// buildAuthHandler wires repositories and services into the API handler.
// rdb may be nil when Redis is disabled.
func buildAuthHandler(cfg *config.Config, db *database.Postgres, rdb *database.Redis, logger *slog.Logger) (http.Handler, error) {
	users := repository.NewUserRepository(db.Pool())
	sessions := repository.NewSessionRepository(db.Pool())

	var codes repository.VerificationCodeRepository
	switch cfg.Verification.Store {
	case config.CodeStoreRedis:
		if rdb == nil {
			return nil, errors.New("redis code store selected but redis is not connected")
		}
		codes = repository.NewRedisVerificationCodeRepository(rdb.Client())
	default:
		codes = repository.NewVerificationCodeRepository(db.Pool())
	}

	hasher, err := service.NewPasswordHasher(cfg.Auth.PasswordScheme)
	if err != nil {
		return nil, err
	}

	tokens, err := service.NewTokenService(cfg.Auth.JWTSecret, sessions)
	if err != nil {
		return nil, err
	}

	sender, err := mailer.NewSMTPSender(cfg.Mail)
	if err != nil {
		return nil, fmt.Errorf("configure mailer: %w", err)
	}

	verifier, err := service.NewGoogleVerifier(cfg.Auth.GoogleTokenInfoURL, cfg.Auth.GoogleClientID, cfg.Auth.ProviderTimeout)
	if err != nil {
		return nil, err
	}
	if cfg.Auth.GoogleClientID == "" {
		logger.Warn("auth.google_client_id is empty, Google token audience will not be checked")
	}

	authSvc := service.NewAuthService(users, tokens, hasher, service.SessionLifetimes{
		Default:    cfg.Auth.SessionTTL,
		RememberMe: cfg.Auth.RememberMeTTL,
	}, logger)
	googleSvc := service.NewGoogleAuthService(verifier, users, tokens, cfg.Auth.GoogleSessionTTL, logger)
	verificationSvc := service.NewVerificationService(codes, users, hasher, sender, cfg.Mail, cfg.Verification.CodeTTL, logger)

	return handler.NewAuthHandler(authSvc, googleSvc, verificationSvc, tokens, logger).Routes(), nil
}

// newRouter builds the root router: probes and metrics at the top level,
// the auth API under the configured base path.
func newRouter(cfg config.ServerConfig, api http.Handler, deps map[string]handler.Pinger, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Set before Mount so the auth router inherits it.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierrors.ErrNotFound)
	})

	r.Get("/health", handler.Health())
	r.Get("/ready", handler.Ready(deps))
	r.Handle("/metrics", promhttp.Handler())

	base := "/" + strings.Trim(cfg.BasePath, "/")
	r.Mount(base, api)

	return r
}
