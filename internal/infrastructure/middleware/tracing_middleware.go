package middleware

import (
	"vidtube/pkg/logger"
	"vidtube/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TraceIDHeader = "X-Trace-ID"

// TracingMiddleware opens the server span for each request and puts its trace
// id on the context logger and the response. It runs after
// RequestIDMiddleware so the span carries the request id.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.TraceHTTPRequest(c.Request, c.FullPath())
		defer span.End()

		span.SetAttributes(
			attribute.String("http.client_ip", c.ClientIP()),
			attribute.String("http.request_id", logger.RequestID(ctx)),
		)
		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID := sc.TraceID().String()
			ctx = logger.WithTraceID(ctx, traceID)
			c.Header(TraceIDHeader, traceID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if actor := logger.ActorID(c.Request.Context()); actor != "" {
			span.SetAttributes(tracing.ActorIDKey.String(actor))
		}
		switch {
		case status >= 500:
			span.SetStatus(codes.Error, c.Errors.String())
		case len(c.Errors) > 0:
			// client errors leave the status Unset on server spans
			span.AddEvent("request rejected", trace.WithAttributes(
				attribute.String("error", c.Errors.Last().Error()),
			))
		}
	}
}
