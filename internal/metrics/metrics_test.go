package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/harun/lynae/pkg/dispatch"
	"github.com/harun/lynae/pkg/outbound"
	"github.com/harun/lynae/pkg/plugin"
)

var (
	_ dispatch.Recorder   = (*Metrics)(nil)
	_ outbound.Recorder   = (*Metrics)(nil)
	_ plugin.LoadRecorder = (*Metrics)(nil)
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.registry == nil {
		t.Error("Registry is nil")
	}
	if m.MessagesTotal == nil || m.PluginExecutionsTotal == nil || m.PluginExecutionDuration == nil {
		t.Error("dispatch metrics are nil")
	}
	if m.OutboundSendsTotal == nil || m.OutboundSuppressedTotal == nil {
		t.Error("outbound metrics are nil")
	}
	if m.BridgeConnected == nil || m.BridgeReconnectsTotal == nil {
		t.Error("bridge metrics are nil")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	m.RecordMessage(dispatch.OutcomeDone)
	m.RecordExecution("ping", 20*time.Millisecond, nil)
	m.RecordSend(nil)
	m.RecordSuppressed(outbound.ReasonEmptyText)
	m.RecordPluginLoad("ping", nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	m.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	expectedMetrics := []string{
		"lynae_messages_total",
		"lynae_plugin_executions_total",
		"lynae_plugin_execution_duration_seconds",
		"lynae_outbound_sends_total",
		"lynae_outbound_suppressed_total",
		"lynae_plugin_loads_total",
		"lynae_bridge_connected",
		"lynae_cache_entries",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
}

func TestRecorders(t *testing.T) {
	m := NewMetrics()

	t.Run("messages by outcome", func(t *testing.T) {
		m.RecordMessage(dispatch.OutcomeDuplicate)
		m.RecordMessage(dispatch.OutcomeDuplicate)
		m.RecordMessage(dispatch.OutcomeStale)

		if got := testutil.ToFloat64(m.MessagesTotal.WithLabelValues("duplicate")); got != 2 {
			t.Errorf("duplicate = %v, want 2", got)
		}
		if got := testutil.ToFloat64(m.MessagesTotal.WithLabelValues("stale")); got != 1 {
			t.Errorf("stale = %v, want 1", got)
		}
	})

	t.Run("execution status", func(t *testing.T) {
		m.RecordExecution("tiktok", time.Second, errors.New("boom"))
		m.RecordExecution("tiktok", time.Second, nil)

		if got := testutil.ToFloat64(m.PluginExecutionsTotal.WithLabelValues("tiktok", "error")); got != 1 {
			t.Errorf("error = %v, want 1", got)
		}
		if got := testutil.ToFloat64(m.PluginExecutionsTotal.WithLabelValues("tiktok", "success")); got != 1 {
			t.Errorf("success = %v, want 1", got)
		}
	})

	t.Run("suppressed by reason", func(t *testing.T) {
		m.RecordSuppressed(outbound.ReasonNil)

		if got := testutil.ToFloat64(m.OutboundSuppressedTotal.WithLabelValues(outbound.ReasonNil)); got != 1 {
			t.Errorf("nil_content = %v, want 1", got)
		}
	})

	t.Run("bridge state", func(t *testing.T) {
		m.SetConnected(true)
		if got := testutil.ToFloat64(m.BridgeConnected); got != 1 {
			t.Errorf("connected = %v, want 1", got)
		}
		m.SetConnected(false)
		if got := testutil.ToFloat64(m.BridgeConnected); got != 0 {
			t.Errorf("connected = %v, want 0", got)
		}

		m.RecordReconnect()
		m.RecordDropped()
		if got := testutil.ToFloat64(m.BridgeReconnectsTotal); got != 1 {
			t.Errorf("reconnects = %v, want 1", got)
		}
		if got := testutil.ToFloat64(m.BridgeEventsDropped); got != 1 {
			t.Errorf("dropped = %v, want 1", got)
		}
	})
}

func TestMetricsRegistry(t *testing.T) {
	m := NewMetrics()

	m.RecordMessage(dispatch.OutcomeDone)
	m.RecordExecution("ping", time.Millisecond, nil)
	m.RecordSend(nil)
	m.RecordSuppressed(outbound.ReasonNil)
	m.RecordPluginLoad("ping", nil)

	metricFamilies, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	metricNames := make(map[string]bool)
	for _, mf := range metricFamilies {
		metricNames[mf.GetName()] = true
	}

	expectedCount := 13
	if len(metricNames) != expectedCount {
		t.Errorf("Expected %d metrics, got %d", expectedCount, len(metricNames))
	}
}
