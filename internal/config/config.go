// Package config loads Galois's process configuration from a YAML
// file, mirroring chycee-cryptoGo's internal/infra config loader:
// nested structs with yaml tags, environment-variable overrides for
// deployment-specific endpoints and paths, and a Validate pass before the loaded config is
// handed to main.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is every knob Galois's process needs at startup.
type Config struct {
	Ingress struct {
		Addr       string `yaml:"addr"`
		QueueDepth int    `yaml:"queue_depth"`
	} `yaml:"ingress"`

	Store struct {
		Dir string `yaml:"dir"`
	} `yaml:"store"`

	Snapshot struct {
		// IntervalEvents is how many accepted commands pass between
		// automatic DUMP commands (§4.7's "every K events").
		IntervalEvents uint64 `yaml:"interval_events"`
	} `yaml:"snapshot"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`

		Scanner struct {
			Topic   string `yaml:"topic"`
			GroupID string `yaml:"group_id"`
		} `yaml:"scanner"`

		Broadcaster struct {
			Topic string `yaml:"topic"`
		} `yaml:"broadcaster"`
	} `yaml:"kafka"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Metrics struct {
		// Addr is where /metrics is served. Empty disables the
		// metrics HTTP server entirely.
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	// Symbols bootstraps NEW_SYMBOL commands at startup, for a fresh
	// store with no prior snapshot to restore from.
	Symbols []SymbolConfig `yaml:"symbols"`
}

// SymbolConfig is one entry of the bootstrap symbols list.
type SymbolConfig struct {
	Base              uint32 `yaml:"base"`
	Quote             uint32 `yaml:"quote"`
	BaseScale         int32  `yaml:"base_scale"`
	QuoteScale        int32  `yaml:"quote_scale"`
	TakerFee          string `yaml:"taker_fee"`
	MakerFee          string `yaml:"maker_fee"`
	MinAmount         string `yaml:"min_amount"`
	MinVol            string `yaml:"min_vol"`
	EnableMarketOrder bool   `yaml:"enable_market_order"`
}

// Load reads and parses the YAML file at path, applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the fields every component unconditionally
// needs are present and sane, matching the teacher's fail-fast-at-load
// philosophy rather than surfacing a nil-pointer deep in startup.
func (c *Config) Validate() error {
	if c.Ingress.Addr == "" {
		return fmt.Errorf("ingress.addr is required")
	}
	if c.Ingress.QueueDepth <= 0 {
		return fmt.Errorf("ingress.queue_depth must be positive")
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir is required")
	}
	if c.Snapshot.IntervalEvents == 0 {
		return fmt.Errorf("snapshot.interval_events must be positive")
	}
	for _, sym := range c.Symbols {
		if sym.BaseScale < 0 || sym.QuoteScale < 0 {
			return fmt.Errorf("symbol base=%d quote=%d: scale must be non-negative", sym.Base, sym.Quote)
		}
	}
	return nil
}

// overrideWithEnv lets the broker list, the ingress address and the
// store directory be supplied
// out-of-band in deployment rather than committed to the YAML file,
// matching chycee-cryptoGo's CRYPTO_*-prefixed override convention.
func overrideWithEnv(cfg *Config) {
	if brokers := os.Getenv("GALOIS_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if addr := os.Getenv("GALOIS_INGRESS_ADDR"); addr != "" {
		cfg.Ingress.Addr = addr
	}
	if dir := os.Getenv("GALOIS_STORE_DIR"); dir != "" {
		cfg.Store.Dir = dir
	}
}
