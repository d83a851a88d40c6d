package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidtube/internal/core/ports"
	"vidtube/internal/core/services"
	httphandlers "vidtube/internal/handlers/http"
	"vidtube/internal/infrastructure/activity"
	"vidtube/internal/infrastructure/assets"
	backupsched "vidtube/internal/infrastructure/backup"
	"vidtube/internal/infrastructure/events"
	"vidtube/internal/infrastructure/middleware"
	"vidtube/internal/infrastructure/monitoring"
	"vidtube/internal/infrastructure/repositories"
	"vidtube/internal/infrastructure/security"
	"vidtube/pkg/backup"
	"vidtube/pkg/config"
	"vidtube/pkg/logger"
	"vidtube/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var configPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"/etc/vidtube/config.yaml",
	"config.yaml",
}

func loadConfig() (*config.Config, string, error) {
	if path := os.Getenv("VIDTUBE_CONFIG"); path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			cfg, err := config.Load(path)
			return cfg, path, err
		}
	}
	// no file anywhere: defaults plus environment
	cfg, err := config.Load("")
	return cfg, "", err
}

func main() {
	cfg, path, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()
	log.Infow("configuration loaded", "path", path, "storage", cfg.Storage.Backend, "assets", cfg.Assets.Backend)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "vidtube-api",
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SamplingRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	repos := repoFactory.Repositories()

	assetStore, err := assets.NewFromConfig(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to create asset store", "error", err)
	}

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	metrics := services.NewMetricsService(collector)

	// Edge events always reach this process's feed; with Redis they also
	// reach every other instance and any standalone activity server.
	localBus := events.NewLocalBus(log)
	var publisher ports.EventPublisher = localBus
	var redisBus *events.RedisBus
	if cfg.Redis.Events && repoFactory.RedisClient() != nil {
		redisBus = events.NewRedisBus(repoFactory.RedisClient(), cfg.Redis.Channel, uuid.NewString(), log)
		publisher = events.Fanout{localBus, redisBus}
	}

	auth := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	guard := services.NewAccessGuard()
	toggles := services.NewToggleService(repos, guard, publisher, metrics, log)

	svc := httphandlers.Services{
		Actors:    services.NewActorService(repos, guard, security.NewBcryptHasher(cfg.Auth.BcryptCost), auth, assetStore, metrics, log),
		Content:   services.NewContentService(repos, toggles, guard, assetStore, cfg.Pagination.HistoryLimit, metrics, log),
		Playlists: services.NewPlaylistService(repos, guard, log),
		Toggles:   toggles,
		Reads:     services.NewAggregationService(repos, cfg.Pagination.MaxPageSize, metrics, log),
		Verifier:  auth,
	}

	health := monitoring.NewHealthChecker()
	health.AddStorageCheck(repoFactory, 30*time.Second, 5*time.Second)
	if client := repoFactory.RedisClient(); client != nil {
		health.AddRedisCheck(client, 30*time.Second, 2*time.Second)
	}
	health.AddBreakerCheck("asset_store", assetStore.State)
	health.StartBackgroundChecks(ctx, log)

	var scheduler *backupsched.Scheduler
	schedulerDone := make(chan struct{})
	if cfg.Backup.Enabled {
		source, ok := repoFactory.Snapshotter()
		if !ok {
			log.Fatalw("backups need the sqlite storage backend", "backend", cfg.Storage.Backend)
		}
		storage, err := backup.NewStorage(ctx, cfg.Backup.Backend, cfg.Backup.Dir, backup.S3Options{
			Bucket:   cfg.Backup.S3.Bucket,
			Region:   cfg.Backup.S3.Region,
			Endpoint: cfg.Backup.S3.Endpoint,
			Prefix:   cfg.Backup.S3.Prefix,
		})
		if err != nil {
			log.Fatalw("Failed to open backup storage", "error", err)
		}
		scheduler = backupsched.NewScheduler(backup.NewService(storage, source), backupsched.Config{
			Interval:  cfg.Backup.Interval,
			Retention: cfg.Backup.Retention,
		}, log.Named("backup"))
		go func() {
			defer close(schedulerDone)
			scheduler.Start(ctx)
		}()
		log.Infow("backup scheduler started", "interval", cfg.Backup.Interval, "backend", cfg.Backup.Backend)
	} else {
		close(schedulerDone)
	}

	opts := httphandlers.RouterOptions{
		Recorder: collector,
		Health:   health.Handler(),
		Ready: func(c *gin.Context) {
			if !health.IsReady(c.Request.Context()) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "timestamp": time.Now()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now()})
		},
	}
	if cfg.Monitoring.PrometheusEnabled {
		opts.Metrics = promhttp.Handler()
	}
	if cfg.Assets.Backend == "file" {
		opts.AssetRoot = cfg.Assets.File.Root
	}

	var feed *activity.Server
	if cfg.Activity.Enabled {
		feed = activity.NewServer(auth, middleware.NewConnectionLimiter(cfg), collector, activity.OptionsFromConfig(cfg), log)
		opts.Activity = feed.HandleWebSocket

		ch, unsubscribe := localBus.Subscribe(cfg.Activity.SendBuffer)
		defer unsubscribe()
		go events.Pump(ctx, ch, feed.Deliver, log)
		if redisBus != nil {
			go func() {
				if err := redisBus.Subscribe(ctx, feed.Deliver); err != nil && ctx.Err() == nil {
					log.Errorw("edge event subscription ended", "error", err)
				}
			}()
		}
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httphandlers.NewRouter(cfg, svc, opts, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting vidtube API server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down vidtube API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if feed != nil {
		feed.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}
	stop()
	if scheduler != nil {
		scheduler.Stop()
	}
	<-schedulerDone

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer provider", "error", err)
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("vidtube API server stopped")
}
