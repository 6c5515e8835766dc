package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Emart29/iOpsAI/internal"
	"github.com/Emart29/iOpsAI/internal/domain"
	"github.com/Emart29/iOpsAI/internal/handler"
	"github.com/Emart29/iOpsAI/internal/metrics"
	"github.com/Emart29/iOpsAI/internal/middleware"
	"github.com/Emart29/iOpsAI/internal/repository"
	"github.com/Emart29/iOpsAI/internal/scheduler"
	"github.com/Emart29/iOpsAI/internal/service"
	"github.com/Emart29/iOpsAI/internal/storage"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize dataset payload storage
	files, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Initialize stores
	users := repository.NewUserStore(db)
	usage := repository.NewUsageStore(db)

	// Initialize tier limits (free tier is operator-tunable)
	limits := domain.NewLimitTableWithOverrides(cfg.FreeTierLimits())

	// Initialize services
	gate := service.NewQuotaGate(users, usage, limits, nil, logger)
	reset := service.NewResetService(usage, nil, logger)

	// Start the monthly reset scheduler unless disabled
	if cfg.ResetSchedule != "" {
		sched := scheduler.New(reset, cfg.ResetSchedule, logger)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("scheduler start failed: %w", err)
		}
	} else {
		logger.Info("In-process reset scheduler disabled")
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	identityMw := middleware.NewIdentityMiddleware(users, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitWindow, logger)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Initialize handlers
	quotaHandler := handler.NewQuotaHandler(gate, files, logger, cfg.UpgradeURL, cfg.MaxUploadBytes)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics, behind basic auth
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// API routes require a resolved user and sit behind the rate limiter
	requireUser := middleware.Stack(identityMw.WithUser, rateLimitMw.Limit, identityMw.RequireUser)
	quotaHandler.RegisterRoutes(mux, requireUser)

	// Outer stack applies to everything
	root := middleware.Stack(
		securityMw.Handler,
		metrics.Middleware,
		loggingMw.Handler,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			stop()
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newStorage builds the dataset payload store named by the configuration.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	case storage.ProviderLocal:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.StorageProvider)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
