package main

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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tradefoox/deckvault/internal/auth"
	"github.com/tradefoox/deckvault/internal/config"
	"github.com/tradefoox/deckvault/internal/handlers"
	"github.com/tradefoox/deckvault/internal/metrics"
	"github.com/tradefoox/deckvault/internal/middleware"
	"github.com/tradefoox/deckvault/internal/registry"
	"github.com/tradefoox/deckvault/internal/repository"
	"github.com/tradefoox/deckvault/internal/repository/jsonfile"
	"github.com/tradefoox/deckvault/internal/repository/postgres"
	"github.com/tradefoox/deckvault/internal/repository/sqlite"
	"github.com/tradefoox/deckvault/internal/storage"
	"github.com/tradefoox/deckvault/internal/storage/filesystem"
	"github.com/tradefoox/deckvault/internal/storage/s3"
	"github.com/tradefoox/deckvault/internal/webhooks"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("starting deckvault",
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"storage_backend", cfg.StorageBackend,
		"static_dir", cfg.StaticDir,
		"max_upload_size", cfg.MaxUploadSize,
		"admin_token_hashed", cfg.AdminTokenHash != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		slog.Error("failed to open record store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	blobs, err := openBlobStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize blob storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}

	staticRoot, err := filesystem.NewFilesystemStorage(cfg.StaticDir)
	if err != nil {
		slog.Error("failed to open static root", "path", cfg.StaticDir, "error", err)
		os.Exit(1)
	}

	authenticator, err := auth.New(cfg.AdminToken, cfg.AdminTokenHash)
	if err != nil {
		slog.Error("failed to initialize admin authenticator", "error", err)
		os.Exit(1)
	}

	store := registry.NewStore(repo)
	store.Load(ctx)

	notifier := startNotifier(cfg, store)

	metricsHandler, err := handlers.MetricsHandler(prometheus.DefaultRegisterer, store, blobs)
	if err != nil {
		slog.Error("failed to register metrics collector", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, handlers.Deps{
		Config:        cfg,
		Store:         store,
		Resolver:      registry.NewResolver(store, blobs, staticRoot),
		Blobs:         blobs,
		Authenticator: authenticator,
		Metrics:       metricsHandler,
		StartTime:     time.Now(),
	})

	rateLimiter := middleware.NewRateLimiter(cfg)
	defer rateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      buildHandler(cfg, mux, rateLimiter),
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		// Give outstanding downloads 10 seconds to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			os.Exit(1)
		}

		if notifier != nil {
			notifier.Shutdown(shutdownCtx)
		}

		slog.Info("server shutdown complete")
	}
}

// startNotifier starts webhook delivery when endpoints are configured
func startNotifier(cfg *config.Config, store *registry.Store) *webhooks.Dispatcher {
	if len(cfg.Webhooks) == 0 {
		return nil
	}

	d := webhooks.NewDispatcher(cfg.Webhooks, cfg.WebhookWorkers, cfg.WebhookQueueSize, webhooks.NewPrometheusMetrics())
	d.Start()
	store.SetNotifier(d)
	return d
}

// buildHandler wraps the router with the middleware chain.
// Order: Recovery -> RealIP -> Logging -> Security -> CORS -> RateLimit -> Metrics -> routes
func buildHandler(cfg *config.Config, mux http.Handler, rl *middleware.RateLimiter) http.Handler {
	return middleware.RecoveryMiddleware(
		middleware.RealIP(cfg)(
			middleware.LoggingMiddleware(
				middleware.SecurityHeadersMiddleware(
					middleware.CORSMiddleware(cfg.CORSAllowedOrigins)(
						middleware.RateLimitMiddleware(rl)(
							metrics.Middleware(mux),
						),
					),
				),
			),
		),
	)
}

// openRepository selects the snapshot backend named by cfg.StoreBackend
func openRepository(ctx context.Context, cfg *config.Config) (repository.RecordRepository, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendJSON:
		slog.Info("using json record store", "path", cfg.DataFile)
		return jsonfile.New(cfg.DataFile), nil

	case config.StoreBackendSQLite:
		slog.Info("using sqlite record store", "path", cfg.DBPath)
		repo, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return repo, nil

	case config.StoreBackendPostgres:
		slog.Info("using postgres record store",
			"max_connections", cfg.PostgreSQL.MaxConnections,
			"auto_migrate", cfg.PostgreSQL.AutoMigrate,
		)
		repo, err := postgres.Open(ctx, cfg.PostgreSQL.URL, int32(cfg.PostgreSQL.MaxConnections), cfg.PostgreSQL.AutoMigrate)
		if err != nil {
			return nil, err
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// openBlobStorage selects where server uploads are kept
func openBlobStorage(ctx context.Context, cfg *config.Config) (storage.StorageBackend, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendFilesystem:
		slog.Info("upload directory ready", "path", cfg.UploadDir)
		fs, err := filesystem.NewFilesystemStorage(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return fs, nil

	case config.StorageBackendS3:
		s3Storage, err := s3.NewS3Storage(ctx, s3.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
			Prefix:          cfg.S3.Prefix,
			StorageQuota:    cfg.S3.StorageQuota,
		})
		if err != nil {
			return nil, err
		}
		return s3Storage, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
