// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus collectors for the providers, the
// cache, the pipeline stages and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Namespace prefixes every metric name.
const Namespace = "reality_check"

// Collector records the pipeline's metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	providerRequests *prometheus.CounterVec
	providerResults  *prometheus.HistogramVec
	providerDuration *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec

	stageDuration     *prometheus.HistogramVec
	stageDegradations *prometheus.CounterVec
	questions         *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	wsClients    prometheus.Gauge

	logger *zap.Logger
}

// New returns a Collector with Go runtime and process collectors
// registered alongside the pipeline metrics.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),

		providerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "provider_requests_total",
			Help:      "Source provider calls by outcome",
		}, []string{"provider", "status"}),
		providerResults: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "provider_results",
			Help:      "Results returned per provider call",
			Buckets:   []float64{0, 1, 5, 10, 15, 25},
		}, []string{"provider"}),
		providerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "provider_duration_seconds",
			Help:      "Source provider call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),

		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by outcome (hit, miss, error)",
		}, []string{"outcome"}),

		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),
		stageDegradations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stage_degradations_total",
			Help:      "Pipeline stages that fell back to a fixed result",
		}, []string{"stage"}),
		questions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "questions_total",
			Help:      "Questions answered by outcome",
		}, []string{"transport", "outcome"}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "websocket_clients",
			Help:      "Open WebSocket connections",
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveProvider records one source provider call.
func (c *Collector) ObserveProvider(provider string, results int, elapsed time.Duration, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	c.providerRequests.WithLabelValues(provider, status).Inc()
	c.providerResults.WithLabelValues(provider).Observe(float64(results))
	c.providerDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveCache records one cache lookup outcome.
func (c *Collector) ObserveCache(outcome string) {
	c.cacheLookups.WithLabelValues(outcome).Inc()
}

// ObserveStage records a pipeline stage and whether it used its fallback.
func (c *Collector) ObserveStage(stage string, elapsed time.Duration, degraded bool) {
	c.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if degraded {
		c.stageDegradations.WithLabelValues(stage).Inc()
	}
}

// RecordQuestion counts a finished question.
func (c *Collector) RecordQuestion(transport string, ok bool) {
	outcome := "answered"
	if !ok {
		outcome = "failed"
	}
	c.questions.WithLabelValues(transport, outcome).Inc()
}

// RecordHTTPRequest records a served HTTP request. path should be the
// route pattern, not the raw URL, to bound label cardinality.
func (c *Collector) RecordHTTPRequest(method, path string, status int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// WebSocketOpened and WebSocketClosed track open connections.
func (c *Collector) WebSocketOpened() { c.wsClients.Inc() }

// WebSocketClosed decrements the open connection gauge.
func (c *Collector) WebSocketClosed() { c.wsClients.Dec() }
