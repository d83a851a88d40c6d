package tracing

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "vidtube"

// TracerProvider owns the SDK provider when tracing is enabled; the zero
// value is a no-op.
type TracerProvider struct {
	tp *tracesdk.TracerProvider
}

type Config struct {
	Enabled     bool
	ServiceName string
	Version     string
	JaegerURL   string
	Environment string
	SampleRate  float64
}

// Init installs a Jaeger-exporting provider and W3C propagation as the
// process globals. With tracing disabled the otel no-op provider stays in
// place and every helper below produces non-recording spans.
func Init(cfg Config) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{}, nil
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Upstream sampling decisions win; new traces are sampled by ratio.
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes buffered spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.tp == nil {
		return nil
	}
	return tp.tp.Shutdown(ctx)
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// RecordError marks the span in ctx as failed.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

var (
	ActorIDKey    = attribute.Key("actor.id")
	EdgeKindKey   = attribute.Key("edge.kind")
	TargetIDKey   = attribute.Key("target.id")
	TargetKindKey = attribute.Key("target.kind")
	OperationKey  = attribute.Key("operation")
)

// TraceHTTPRequest starts the server span for an inbound request, continuing
// a trace propagated in the request headers. route is the matched pattern,
// not the raw path, to keep span names low-cardinality.
func TraceHTTPRequest(r *http.Request, route string) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	if route == "" {
		route = "unmatched"
	}
	return StartSpan(ctx, r.Method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(r.Method),
			semconv.HTTPRouteKey.String(route),
		),
	)
}

func TraceToggle(ctx context.Context, kind, actorID, targetID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "toggle."+kind,
		trace.WithAttributes(
			EdgeKindKey.String(kind),
			ActorIDKey.String(actorID),
			TargetIDKey.String(targetID),
		),
	)
}

func TraceAggregation(ctx context.Context, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, "aggregation."+operation,
		trace.WithAttributes(OperationKey.String(operation)),
	)
}

// TraceActivityMessage covers one event fanned out to a creator's sockets.
func TraceActivityMessage(ctx context.Context, messageType string, actorID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "activity."+messageType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("activity.message_type", messageType),
			ActorIDKey.String(actorID),
		),
	)
}

// TraceDatabaseOperation covers a store call; table names the table, key
// space or backend it touches.
func TraceDatabaseOperation(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return StartSpan(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBOperationKey.String(operation),
			semconv.DBSQLTableKey.String(table),
		),
	)
}
