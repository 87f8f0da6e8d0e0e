// internal/utils/metrics.go
package utils

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the server. Each instance owns
// its registry. Recording on a nil *Metrics is a no-op.
type Metrics struct {
	registry       *prometheus.Registry
	namespace      string
	logger         *Logger
	activeSessions atomic.Int64

	// HTTP
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Sessions
	SessionsActive    prometheus.Gauge
	SessionsTotal     *prometheus.CounterVec
	EnvelopesInbound  *prometheus.CounterVec
	EnvelopesOutbound *prometheus.CounterVec
	HeartbeatFailures prometheus.Counter

	// Pipeline
	StageDuration *prometheus.HistogramVec
	CommandsTotal *prometheus.CounterVec

	// LLM
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	// Errors
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors under namespace
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "overwatch"
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry:  registry,
		namespace: namespace,
		logger:    GetLogger(),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of HTTP API requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		APIRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "HTTP API request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"endpoint", "method"},
		),

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open websocket sessions",
		}),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of websocket sessions by lifecycle event",
			},
			[]string{"event"},
		),
		EnvelopesInbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "envelopes_inbound_total",
				Help:      "Inbound envelopes by type",
			},
			[]string{"type"},
		),
		EnvelopesOutbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "envelopes_outbound_total",
				Help:      "Outbound envelopes by type",
			},
			[]string{"type"},
		),
		HeartbeatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_failures_total",
			Help:      "Heartbeat pings that could not be queued",
		}),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_stage_duration_seconds",
				Help:      "Duration of pipeline stages (transcribe, parse, respond, synthesize)",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"stage"},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Parsed commands by action",
			},
			[]string{"action"},
		),

		LLMRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Generative dialogue requests",
			},
			[]string{"provider", "status"},
		),
		LLMRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Generative dialogue request duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Errors by type and component",
			},
			[]string{"type", "component"},
		),
	}

	registry.MustRegister(
		m.APIRequestsTotal,
		m.APIRequestDuration,
		m.SessionsActive,
		m.SessionsTotal,
		m.EnvelopesInbound,
		m.EnvelopesOutbound,
		m.HeartbeatFailures,
		m.StageDuration,
		m.CommandsTotal,
		m.LLMRequestsTotal,
		m.LLMRequestDuration,
		m.ErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry for extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterCounterFunc exposes a value owned elsewhere as a counter
func (m *Metrics) RegisterCounterFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Namespace: m.namespace, Name: name, Help: help},
		fn,
	))
}

// RecordAPIRequest records metrics for an API request
func (m *Metrics) RecordAPIRequest(endpoint, method string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Inc()
	m.APIRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())

	m.logger.Debug("API request completed", map[string]interface{}{
		"endpoint": endpoint,
		"method":   method,
		"status":   statusCode,
		"duration": duration.Milliseconds(),
	})
}

// SessionOpened records a new websocket session
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Add(1)
	m.SessionsActive.Inc()
	m.SessionsTotal.WithLabelValues("opened").Inc()
}

// SessionClosed records a closed websocket session
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Add(-1)
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues("closed").Inc()
}

// RecordInbound counts an inbound envelope
func (m *Metrics) RecordInbound(envelopeType string) {
	if m == nil {
		return
	}
	m.EnvelopesInbound.WithLabelValues(envelopeType).Inc()
}

// RecordOutbound counts an outbound envelope
func (m *Metrics) RecordOutbound(envelopeType string) {
	if m == nil {
		return
	}
	m.EnvelopesOutbound.WithLabelValues(envelopeType).Inc()
}

// RecordHeartbeatFailure counts a ping that could not be queued
func (m *Metrics) RecordHeartbeatFailure() {
	if m == nil {
		return
	}
	m.HeartbeatFailures.Inc()
}

// ObserveStage records how long a pipeline stage took
func (m *Metrics) ObserveStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordCommand counts a parsed command
func (m *Metrics) RecordCommand(action string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(action).Inc()
}

// RecordLLMRequest records metrics for a generative dialogue request
func (m *Metrics) RecordLLMRequest(provider string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LLMRequestsTotal.WithLabelValues(provider, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordError records an error metric
func (m *Metrics) RecordError(errorType, component string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// StartMetricsCollection periodically logs a short summary until ctx is done
func (m *Metrics) StartMetricsCollection(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.logger.Info("Periodic metrics report", map[string]interface{}{
					"sessions_active": m.ActiveSessions(),
				})
			}
		}
	}()
}

// ActiveSessions returns the current number of open sessions
func (m *Metrics) ActiveSessions() int64 {
	return m.activeSessions.Load()
}
