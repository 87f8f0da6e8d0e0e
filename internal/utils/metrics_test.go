package utils

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecorders(t *testing.T) {
	m := NewMetrics("test")

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	if got := m.ActiveSessions(); got != 1 {
		t.Fatalf("active sessions = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Fatalf("sessions gauge = %v, want 1", got)
	}

	m.RecordInbound("audio")
	m.RecordInbound("audio")
	m.RecordOutbound("voice")
	if got := testutil.ToFloat64(m.EnvelopesInbound.WithLabelValues("audio")); got != 2 {
		t.Fatalf("inbound audio = %v, want 2", got)
	}

	m.RecordCommand("move")
	m.RecordHeartbeatFailure()
	m.RecordError("not_ready", "router")
	m.RecordLLMRequest("openai", 10*time.Millisecond, errors.New("boom"))
	m.ObserveStage("parse", time.Millisecond)
	m.RecordAPIRequest("/api/health", "GET", 200, time.Millisecond)

	if got := testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("openai", "error")); got != 1 {
		t.Fatalf("llm error counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HeartbeatFailures); got != 1 {
		t.Fatalf("heartbeat failures = %v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.SessionOpened()
	m.RecordInbound("audio")
	m.RecordError("fatal", "app")
}

func TestMetricsHandlerExposesCounterFunc(t *testing.T) {
	m := NewMetrics("test")
	m.RegisterCounterFunc("voice_cache_hits_total", "cache hits", func() float64 { return 7 })
	m.RecordCommand("hold")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"test_voice_cache_hits_total 7",
		`test_commands_total{action="hold"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
