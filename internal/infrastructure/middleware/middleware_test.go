package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"vidtube/internal/core/domain"
	"vidtube/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type staticVerifier map[string]domain.ActorID

func (v staticVerifier) VerifyIdentity(ctx context.Context, credential string) (domain.ActorID, error) {
	if id, ok := v[credential]; ok {
		return id, nil
	}
	return "", domain.Unauthenticated("verify_identity", "invalid access token")
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verifier := staticVerifier{"Bearer good": "actor-1"}

	router := gin.New()
	router.GET("/me", AuthMiddleware(verifier), func(c *gin.Context) {
		c.String(http.StatusOK, "%s|%s", Actor(c), logger.ActorID(c.Request.Context()))
	})

	w := get(router, "/me", http.Header{"Authorization": []string{"Bearer good"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "actor-1|actor-1", w.Body.String())

	w = get(router, "/me", http.Header{"Authorization": []string{"Bearer bad"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")

	w = get(router, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verifier := staticVerifier{"Bearer good": "actor-1"}

	router := gin.New()
	router.GET("/feed", OptionalAuthMiddleware(verifier), func(c *gin.Context) {
		c.String(http.StatusOK, "%s", Actor(c))
	})

	assert.Equal(t, "actor-1", get(router, "/feed", http.Header{"Authorization": []string{"Bearer good"}}).Body.String())
	assert.Equal(t, "", get(router, "/feed", http.Header{"Authorization": []string{"Bearer bad"}}).Body.String())
	assert.Equal(t, http.StatusOK, get(router, "/feed", nil).Code)
}

func TestErrorHandlerMiddleware_MapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.New(core).Sugar()))
	router.GET("/missing", func(c *gin.Context) {
		_ = c.Error(domain.NotFound("get_video", "video v1 not found"))
	})
	router.GET("/down", func(c *gin.Context) {
		_ = c.Error(domain.DependencyFailure("get_video", errors.New("disk on fire")))
	})
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	w := get(router, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "video v1 not found")

	w = get(router, "/down", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")

	w = get(router, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Equal(t, 1, logs.FilterMessage("request rejected").Len())
	assert.Equal(t, 2, logs.FilterMessage("request failed").Len())
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(zaptest.NewLogger(t).Sugar()))
	router.GET("/panic", func(c *gin.Context) { panic("bad") })

	w := get(router, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "%s", logger.RequestID(c.Request.Context()))
	})

	w := get(router, "/", http.Header{RequestIDHeader: []string{"abc"}})
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))

	w = get(router, "/", nil)
	require.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}

func TestAccessLogMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	router := gin.New()
	router.Use(RequestIDMiddleware(), AccessLogMiddleware(logger.NewContextLogger(zap.New(core))))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	get(router, "/ok", http.Header{RequestIDHeader: []string{"req-1"}})

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, int64(http.StatusNoContent), fields["status_code"])
}

func TestTracingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := tracetest.NewSpanRecorder()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		tp.Shutdown(context.Background())
	})

	router := gin.New()
	router.Use(RequestIDMiddleware(), TracingMiddleware())
	router.GET("/videos/:videoId", func(c *gin.Context) {
		c.AbortWithStatus(http.StatusInternalServerError)
	})

	w := get(router, "/videos/abc", http.Header{RequestIDHeader: []string{"req-7"}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(TraceIDHeader))

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "GET /videos/:videoId", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("http.request_id", "req-7"))
	assert.Equal(t, w.Header().Get(TraceIDHeader), ended[0].SpanContext().TraceID().String())
}
