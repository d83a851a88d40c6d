package monitoring

import (
	"strconv"
	"time"

	"vidtube/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.MetricsSink and the activity feed's
// connection observer.
type PrometheusCollector struct {
	// Counters
	togglesTotal         *prometheus.CounterVec
	toggleConflictsTotal *prometheus.CounterVec
	assetCleanupFailures prometheus.Counter
	httpRequestsTotal    *prometheus.CounterVec

	// Histograms
	aggregationDuration *prometheus.HistogramVec
	httpRequestDuration *prometheus.HistogramVec

	activityConnections prometheus.Gauge
}

// NewPrometheusCollector registers the metrics with reg; pass
// prometheus.DefaultRegisterer in production.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		togglesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vidtube_edge_toggles_total",
			Help: "Applied like and subscription toggles",
		}, []string{"kind", "outcome"}),

		toggleConflictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vidtube_edge_toggle_conflicts_total",
			Help: "Toggles that lost a uniqueness race",
		}, []string{"kind"}),

		assetCleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "vidtube_asset_cleanup_failures_total",
			Help: "Unreferenced assets that could not be deleted",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vidtube_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		aggregationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidtube_aggregation_duration_seconds",
			Help:    "Latency of read-side aggregations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidtube_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),

		activityConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vidtube_activity_connections",
			Help: "Open activity feed WebSocket connections",
		}),
	}
}

func (p *PrometheusCollector) RecordToggle(kind domain.EdgeKind, outcome domain.ToggleOutcome) {
	p.togglesTotal.WithLabelValues(string(kind), string(outcome)).Inc()
}

func (p *PrometheusCollector) RecordToggleConflict(kind domain.EdgeKind) {
	p.toggleConflictsTotal.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RecordAggregation(op string, d time.Duration) {
	p.aggregationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *PrometheusCollector) RecordAssetCleanupFailure() {
	p.assetCleanupFailures.Inc()
}

func (p *PrometheusCollector) SetActivityConnections(n int) {
	p.activityConnections.Set(float64(n))
}

// RecordHTTPRequest uses the route template, not the raw path, to keep label
// cardinality bounded.
func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	p.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
