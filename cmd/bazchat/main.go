package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/bazchat-go/internal/config"
	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/handler"
	"github.com/boddenberg/bazchat-go/internal/infra/cache"
	"github.com/boddenberg/bazchat-go/internal/infra/imagehost"
	"github.com/boddenberg/bazchat-go/internal/infra/llm"
	"github.com/boddenberg/bazchat-go/internal/infra/observability"
	"github.com/boddenberg/bazchat-go/internal/infra/resilience"
	"github.com/boddenberg/bazchat-go/internal/infra/sqlstore"
	"github.com/boddenberg/bazchat-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("database_driver", cfg.DatabaseDriver),
		zap.Bool("bootstrap_schema", cfg.BootstrapSchema),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.String("image_provider", cfg.ImageProvider),
		zap.String("llm_provider", cfg.LLMProvider),
	)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "bazchat")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Database ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	db, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver:          cfg.DatabaseDriver,
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		Retry:           resilienceCfg,
	}, metrics, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if cfg.BootstrapSchema {
		if err := db.Bootstrap(ctx); err != nil {
			var bootErr *domain.ErrBootstrap
			if errors.As(err, &bootErr) {
				logger.Fatal("schema bootstrap failed", zap.String("statement", bootErr.Statement), zap.Error(bootErr.Err))
			}
			logger.Fatal("schema bootstrap failed", zap.Error(err))
		}
		logger.Info("schema ready")
	}

	// --- Providers ---
	uploader, err := imagehost.FromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("failed to configure image host", zap.Error(err))
	}
	if uploader == nil {
		logger.Warn("image uploads disabled: IMAGE_PROVIDER not configured")
	}

	generator, err := llm.FromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to configure llm provider", zap.Error(err))
	}
	if c, ok := generator.(io.Closer); ok {
		defer c.Close()
	}

	// --- Services ---
	identitySvc := service.NewIdentityService(
		db, db,
		cache.New[*domain.BusinessProfile](cfg.CacheTTL),
		cfg.JWTSecret, cfg.JWTAccessTTL,
		metrics, logger,
	)

	var responder *service.AutoResponder
	if generator != nil {
		responder = service.NewAutoResponder(db, generator, cfg.MaxConcurrency, cfg.AIReplyTimeout, cfg.AIHistoryLimit, metrics, logger)
		logger.Info("auto-responder enabled", zap.String("provider", generator.Name()))
	} else {
		logger.Warn("auto-responder disabled: LLM_PROVIDER not configured")
	}

	chatSvc := service.NewChatService(db, identitySvc, responder, metrics, logger)
	dashboardSvc := service.NewDashboardService(identitySvc, chatSvc)

	var uploadSvc *service.UploadService
	if uploader != nil {
		uploadSvc = service.NewUploadService(uploader, cfg.MaxUploadBytes, metrics, logger)
	}

	// --- Router ---
	router := handler.NewRouter(identitySvc, chatSvc, dashboardSvc, uploadSvc, db, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}
	chatSvc.Wait()

	logger.Info("server stopped")
}
