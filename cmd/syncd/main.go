package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"staysync/internal/api"
	"staysync/internal/config"
	"staysync/internal/database"
	"staysync/internal/events"
	"staysync/internal/export"
	"staysync/internal/logging"
	"staysync/internal/metrics"
	"staysync/internal/models"
	"staysync/internal/repository"
	"staysync/internal/sync"
	"staysync/internal/token"
	"staysync/internal/vendor"
	"staysync/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("database init failed")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, stateRepo := initStateRepository(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics.Register()
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	vendorClient := vendor.NewClient(cfg.Vendor)
	if redisClient != nil {
		ttl := config.Duration(cfg.Vendor.CacheTTL, time.Duration(models.DefaultRedisTTL)*time.Second)
		vendorClient.UseRedisCache(redisClient, ttl)
	}

	tokens := token.NewManager(db, cfg.Vendor, &logger)
	listingSync := sync.NewListings(db, tokens, vendorClient, cfg.Vendor.PageLimit, cfg.Vendor.MaxPages, &logger)
	calendarSync := sync.NewCalendar(db, tokens, vendorClient, &logger)

	retryPolicy := worker.RetryPolicy{
		MaxRetries:    cfg.Worker.MaxRetries,
		InitialDelay:  config.Duration(cfg.Worker.InitialDelay, 2*time.Second),
		MaxDelay:      config.Duration(cfg.Worker.MaxDelay, time.Minute),
		BackoffFactor: cfg.Worker.BackoffFactor,
	}
	syncWorker := worker.NewSyncWorker(db, listingSync, calendarSync, db, stateRepo, redisClient, retryPolicy, &logger)
	syncWorker.SetPolling(config.Duration(cfg.Worker.PollInterval, 2*time.Second), cfg.Worker.BatchSize)

	if err := syncWorker.EnsureRecurring(ctx); err != nil {
		logger.Error().Err(err).Msg("recurring schedule init failed")
		return err
	}
	go syncWorker.Start(ctx)

	router := events.NewRouter(db, syncWorker, stateRepo, &logger)
	exporter := export.NewExporter(db, cfg.Exports, &logger)

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, db, syncWorker, router, exporter, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	logger.Info().Str("environment", cfg.App.Environment).Msg("sync engine started")
	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "syncd").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("database directory create failed")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("exports directory create failed")
		return err
	}
	return nil
}

func initStateRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *repository.FailoverSyncStateRepository) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if err := repository.Ping(ctx, redisClient); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable")
		}
	}

	primary := repository.NewRedisSyncStateRepository(redisClient, 24*time.Hour)
	fallback := repository.NewMemorySyncStateRepository()
	return redisClient, repository.NewFailoverSyncStateRepository(primary, fallback, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
