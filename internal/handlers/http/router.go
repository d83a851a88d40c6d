package http

import (
	"net/http"
	"time"

	"vidtube/internal/core/ports"
	"vidtube/internal/infrastructure/middleware"
	"vidtube/pkg/config"
	"vidtube/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services bundles what the handlers call into.
type Services struct {
	Actors    ports.ActorService
	Content   ports.ContentService
	Playlists ports.PlaylistService
	Toggles   ports.ToggleService
	Reads     ports.AggregationService
	Verifier  ports.IdentityVerifier
}

// RouterOptions carries the optional pieces of the HTTP surface. Nil
// handlers leave their route out.
type RouterOptions struct {
	Recorder  middleware.RequestRecorder
	Health    gin.HandlerFunc
	Ready     gin.HandlerFunc
	Metrics   http.Handler
	Activity  http.HandlerFunc
	AssetRoot string // served under cfg.Assets.File.BaseURL when set
}

// NewRouter assembles the API engine. Routes live under /api/v1.
func NewRouter(cfg *config.Config, svc Services, opts RouterOptions, log *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = 32 << 20

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	if opts.Recorder != nil {
		router.Use(middleware.MetricsMiddleware(opts.Recorder))
	}
	router.Use(middleware.AccessLogMiddleware(logger.NewContextLogger(log.Desugar())))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	router.Use(bodyLimit(cfg.Server.MaxUploadBytes))

	started := time.Now()
	if opts.Health != nil {
		router.GET("/health", opts.Health)
	} else {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "healthy",
				"timestamp": time.Now(),
				"uptime":    time.Since(started).String(),
			})
		})
	}
	if opts.Ready != nil {
		router.GET("/ready", opts.Ready)
	}
	if opts.Metrics != nil {
		path := cfg.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(opts.Metrics))
	}
	if opts.Activity != nil {
		router.GET("/ws", gin.WrapF(opts.Activity))
	}
	if opts.AssetRoot != "" && cfg.Assets.File.BaseURL != "" {
		router.Static(cfg.Assets.File.BaseURL, opts.AssetRoot)
	}

	requireAuth := middleware.AuthMiddleware(svc.Verifier)
	optionalAuth := middleware.OptionalAuthMiddleware(svc.Verifier)

	api := router.Group("/api/v1")
	NewAuthHandler(svc.Actors).SetupRoutes(api, requireAuth)
	NewChannelHandler(svc.Reads).SetupRoutes(api, requireAuth, optionalAuth)
	NewVideoHandler(svc.Content, svc.Reads).SetupRoutes(api, requireAuth, optionalAuth)
	NewDiscussionHandler(svc.Content, svc.Reads).SetupRoutes(api, requireAuth, optionalAuth)
	NewRelationshipHandler(svc.Toggles, svc.Reads).SetupRoutes(api, requireAuth, optionalAuth)
	NewPlaylistHandler(svc.Playlists, svc.Reads).SetupRoutes(api, requireAuth)

	return router
}

// bodyLimit caps request bodies; uploads are the only large ones.
func bodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
