package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRegistryExposesAcceptedCounter(t *testing.T) {
	m, reg := NewRegistry()
	m.CommandsAccepted.WithLabelValues("BID_LIMIT").Inc()
	m.QueueDepth.Set(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "galois_commands_accepted_total") {
		t.Fatalf("expected accepted counter in scrape output, got:\n%s", body)
	}
	if !strings.Contains(body, "galois_ingress_queue_depth 3") {
		t.Fatalf("expected queue depth gauge value 3 in scrape output, got:\n%s", body)
	}
}

func TestNewRegistryExposesRejectedCounterAndLatencyHistogram(t *testing.T) {
	m, reg := NewRegistry()
	m.CommandsRejected.WithLabelValues("InsufficientFunds").Inc()
	m.CommandLatency.WithLabelValues("BID_LIMIT").Observe(0.002)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "galois_commands_rejected_total") {
		t.Fatalf("expected rejected counter in scrape output, got:\n%s", body)
	}
	if !strings.Contains(body, "galois_command_latency_seconds") {
		t.Fatalf("expected latency histogram in scrape output, got:\n%s", body)
	}
}

func TestNewRegistryIsIndependentAcrossInstances(t *testing.T) {
	_, regA := NewRegistry()
	_, regB := NewRegistry()
	if regA == regB {
		t.Fatal("expected each NewRegistry call to produce an independent prometheus.Registry")
	}
}
