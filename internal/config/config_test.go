package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
ingress:
  addr: "127.0.0.1:9000"
  queue_depth: 4096
store:
  dir: "/var/lib/galois"
snapshot:
  interval_events: 10000
kafka:
  brokers: ["localhost:9092"]
  scanner:
    topic: "chain.events"
    group_id: "galois-scanner"
  broadcaster:
    topic: "galois.settlement"
logging:
  level: "info"
symbols:
  - base: 1
    quote: 0
    base_scale: 8
    quote_scale: 4
    taker_fee: "0.001"
    maker_fee: "0.0005"
    min_amount: "0.001"
    min_vol: "0.01"
    enable_market_order: true
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "galois.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesNestedConfig(t *testing.T) {
	cfg, err := Load(writeSample(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingress.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected ingress addr %q", cfg.Ingress.Addr)
	}
	if cfg.Snapshot.IntervalEvents != 10000 {
		t.Fatalf("unexpected snapshot interval %d", cfg.Snapshot.IntervalEvents)
	}
	if len(cfg.Symbols) != 1 || cfg.Symbols[0].Base != 1 {
		t.Fatalf("unexpected symbols %+v", cfg.Symbols)
	}
}

func TestLoadRejectsMissingIngressAddr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("store:\n  dir: /tmp\nsnapshot:\n  interval_events: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing ingress.addr")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("GALOIS_INGRESS_ADDR", "0.0.0.0:7000")
	t.Setenv("GALOIS_KAFKA_BROKERS", "broker-a:9092,broker-b:9092")

	cfg, err := Load(writeSample(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingress.Addr != "0.0.0.0:7000" {
		t.Fatalf("expected env override to take effect, got %q", cfg.Ingress.Addr)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "broker-b:9092" {
		t.Fatalf("unexpected brokers %+v", cfg.Kafka.Brokers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
