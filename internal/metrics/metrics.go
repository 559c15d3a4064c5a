package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harun/lynae/pkg/dispatch"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Dispatch metrics
	MessagesTotal           *prometheus.CounterVec
	PluginExecutionsTotal   *prometheus.CounterVec
	PluginExecutionDuration *prometheus.HistogramVec
	DedupEntries            prometheus.Gauge

	// Outbound metrics
	OutboundSendsTotal      *prometheus.CounterVec
	OutboundSuppressedTotal *prometheus.CounterVec

	// Plugin registry metrics
	PluginLoadsTotal *prometheus.CounterVec
	PluginsLoaded    prometheus.Gauge

	// Bridge metrics
	BridgeConnected       prometheus.Gauge
	BridgeReconnectsTotal prometheus.Counter
	BridgeEventsDropped   prometheus.Counter

	// Download cache metrics
	CacheEntries    prometheus.Gauge
	CacheSweptTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Dispatch metrics
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lynae_messages_total",
				Help: "Total number of inbound messages by dispatch outcome",
			},
			[]string{"outcome"},
		),
		PluginExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lynae_plugin_executions_total",
				Help: "Total number of plugin executions",
			},
			[]string{"plugin", "status"},
		),
		PluginExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lynae_plugin_execution_duration_seconds",
				Help:    "Duration of plugin executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"plugin"},
		),
		DedupEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lynae_dedup_entries",
				Help: "Number of message ids held by the duplicate filter",
			},
		),

		// Outbound metrics
		OutboundSendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lynae_outbound_sends_total",
				Help: "Total number of outbound messages handed to the transport",
			},
			[]string{"status"},
		),
		OutboundSuppressedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lynae_outbound_suppressed_total",
				Help: "Total number of outbound messages suppressed by the guard",
			},
			[]string{"reason"},
		),

		// Plugin registry metrics
		PluginLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lynae_plugin_loads_total",
				Help: "Total number of plugin load attempts",
			},
			[]string{"plugin", "status"},
		),
		PluginsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lynae_plugins_loaded",
				Help: "Number of plugins currently registered",
			},
		),

		// Bridge metrics
		BridgeConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lynae_bridge_connected",
				Help: "Whether the session bridge connection is open (1) or not (0)",
			},
		),
		BridgeReconnectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lynae_bridge_reconnects_total",
				Help: "Total number of session bridge reconnect attempts",
			},
		),
		BridgeEventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lynae_bridge_events_dropped_total",
				Help: "Total number of bridge events dropped as session noise",
			},
		),

		// Download cache metrics
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lynae_cache_entries",
				Help: "Number of live download cache entries",
			},
		),
		CacheSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lynae_cache_swept_total",
				Help: "Total number of expired download cache entries removed",
			},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(
		m.MessagesTotal,
		m.PluginExecutionsTotal,
		m.PluginExecutionDuration,
		m.DedupEntries,
		m.OutboundSendsTotal,
		m.OutboundSuppressedTotal,
		m.PluginLoadsTotal,
		m.PluginsLoaded,
		m.BridgeConnected,
		m.BridgeReconnectsTotal,
		m.BridgeEventsDropped,
		m.CacheEntries,
		m.CacheSweptTotal,
	)
}

// RecordMessage counts one inbound message by its dispatch outcome.
func (m *Metrics) RecordMessage(outcome dispatch.Outcome) {
	m.MessagesTotal.WithLabelValues(string(outcome)).Inc()
}

// RecordExecution records one plugin run.
func (m *Metrics) RecordExecution(plugin string, duration time.Duration, err error) {
	m.PluginExecutionsTotal.WithLabelValues(plugin, status(err)).Inc()
	m.PluginExecutionDuration.WithLabelValues(plugin).Observe(duration.Seconds())
}

// RecordSend records one outbound message handed to the transport.
func (m *Metrics) RecordSend(err error) {
	m.OutboundSendsTotal.WithLabelValues(status(err)).Inc()
}

// RecordSuppressed records one outbound message dropped by the guard.
func (m *Metrics) RecordSuppressed(reason string) {
	m.OutboundSuppressedTotal.WithLabelValues(reason).Inc()
}

// RecordPluginLoad records one plugin load attempt.
func (m *Metrics) RecordPluginLoad(name string, err error) {
	m.PluginLoadsTotal.WithLabelValues(name, status(err)).Inc()
}

// SetConnected reports the bridge connection state.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.BridgeConnected.Set(1)
		return
	}
	m.BridgeConnected.Set(0)
}

// RecordReconnect counts one bridge reconnect attempt.
func (m *Metrics) RecordReconnect() {
	m.BridgeReconnectsTotal.Inc()
}

// RecordDropped counts one bridge event filtered as noise.
func (m *Metrics) RecordDropped() {
	m.BridgeEventsDropped.Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
