package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"vidtube/internal/core/services"
	"vidtube/internal/infrastructure/activity"
	"vidtube/internal/infrastructure/events"
	"vidtube/internal/infrastructure/middleware"
	"vidtube/internal/infrastructure/monitoring"
	redisrepo "vidtube/internal/infrastructure/repositories/redis"
	"vidtube/pkg/config"
	"vidtube/pkg/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The standalone activity server only relays edge events that API instances
// publish over Redis; it never touches the stores.
func main() {
	path := os.Getenv("VIDTUBE_CONFIG")
	if path == "" {
		path = "configs/config.yaml"
	}
	cfg, err := config.Load(path)
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

	if !cfg.Redis.Enabled || !cfg.Redis.Events {
		log.Fatal("the standalone activity server needs redis.enabled and redis.events")
	}

	client, err := redisrepo.NewRedisClient(redisrepo.Options{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Prefix:   cfg.Redis.Prefix,
	}, log)
	if err != nil {
		log.Fatalw("failed to connect to Redis", "error", err)
	}
	defer redisrepo.CloseRedisClient(client)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	auth := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	feed := activity.NewServer(auth, middleware.NewConnectionLimiter(cfg), collector, activity.OptionsFromConfig(cfg), log)

	bus := events.NewRedisBus(client, cfg.Redis.Channel, uuid.NewString(), log)
	subscribeErr := make(chan error, 1)
	go func() {
		subscribeErr <- bus.Subscribe(ctx, feed.Deliver)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", feed.HandleWebSocket)
	mux.HandleFunc("/health", feed.HealthCheck)
	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle(cfg.Monitoring.MetricsPath, promhttp.Handler())
	}

	srv := &http.Server{
		Addr:    cfg.Activity.Address,
		Handler: mux,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting vidtube activity server on %s", cfg.Activity.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("Server failed", "error", err)
	case err := <-subscribeErr:
		log.Errorw("Edge event subscription ended", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Activity.ShutdownTimeout)
	defer cancel()

	feed.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
	}
	stop()

	log.Info("vidtube activity server stopped")
}
