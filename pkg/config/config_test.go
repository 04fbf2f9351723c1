package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
environment: test
feed:
  symbols: [BTCUSDT, ETHUSDT]
  websocket_url: wss://stream.example.com/ws
  rest_url: https://api.example.com
`

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Feed.StalenessWindow != 10*time.Second {
		t.Fatalf("unexpected staleness window %v", c.Feed.StalenessWindow)
	}
	if c.Monitor.Interval != 5*time.Second {
		t.Fatalf("unexpected monitor interval %v", c.Monitor.Interval)
	}
	if c.Confidence.BaseThreshold != 0.45 {
		t.Fatalf("unexpected base threshold %v", c.Confidence.BaseThreshold)
	}
	if c.Confidence.CandleHistory != 200 {
		t.Fatalf("unexpected candle history %v", c.Confidence.CandleHistory)
	}
	if c.Account.StartingCash != 10000 {
		t.Fatalf("unexpected starting cash %v", c.Account.StartingCash)
	}
	if len(c.Confidence.BiasCorrection) == 0 {
		t.Fatalf("expected default bias correction table")
	}
	if bc := c.Confidence.BiasCorrection["1m"]; bc.BuyFactor != 0.85 {
		t.Fatalf("unexpected 1m buy factor %v", bc.BuyFactor)
	}
}

func TestLoadExplicitValuesWin(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML+`
monitor:
  interval: 2s
confidence:
  base_threshold: 0.6
  bias_correction:
    1h:
      buy_factor: 1.1
      sell_factor: 0.9
      hold_boost: 1.0
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Monitor.Interval != 2*time.Second {
		t.Fatalf("unexpected interval %v", c.Monitor.Interval)
	}
	if c.Confidence.BaseThreshold != 0.6 {
		t.Fatalf("unexpected threshold %v", c.Confidence.BaseThreshold)
	}
	if bc := c.Confidence.BiasCorrection["1h"]; bc.BuyFactor != 1.1 {
		t.Fatalf("unexpected 1h buy factor %v", bc.BuyFactor)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing environment", `
feed:
  symbols: [BTCUSDT]
  rest_url: https://api.example.com
`},
		{"no symbols", `
environment: test
feed:
  rest_url: https://api.example.com
`},
		{"no provider urls", `
environment: test
feed:
  symbols: [BTCUSDT]
`},
		{"threshold too high", minimalYAML + `
confidence:
  base_threshold: 1.5
`},
		{"kafka enabled without brokers", minimalYAML + `
kafka:
  enabled: true
`},
		{"clickhouse enabled without host", minimalYAML + `
clickhouse:
  enabled: true
`},
		{"non-positive bias factor", minimalYAML + `
confidence:
  bias_correction:
    1m:
      buy_factor: 0
      sell_factor: 1
      hold_boost: 1
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "SOLUSDT,ADAUSDT")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "ticks")
	t.Setenv("PRICE_STALENESS_WINDOW_SECONDS", "30")
	t.Setenv("MONITOR_INTERVAL_SECONDS", "7")
	t.Setenv("CONFIDENCE_THRESHOLD_BASE", "0.55")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Feed.Symbols) != 2 || c.Feed.Symbols[0] != "SOLUSDT" {
		t.Fatalf("unexpected symbols %v", c.Feed.Symbols)
	}
	if !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 {
		t.Fatalf("expected kafka enabled with 2 brokers, got %+v", c.Kafka)
	}
	if c.Kafka.Topic != "ticks" {
		t.Fatalf("unexpected topic %q", c.Kafka.Topic)
	}
	if c.Feed.StalenessWindow != 30*time.Second {
		t.Fatalf("unexpected staleness window %v", c.Feed.StalenessWindow)
	}
	if c.Monitor.Interval != 7*time.Second {
		t.Fatalf("unexpected interval %v", c.Monitor.Interval)
	}
	if c.Confidence.BaseThreshold != 0.55 {
		t.Fatalf("unexpected threshold %v", c.Confidence.BaseThreshold)
	}
}

func TestLoadWithEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("PRICE_STALENESS_WINDOW_SECONDS", "not-a-number")
	t.Setenv("CONFIDENCE_THRESHOLD_BASE", "-1")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Feed.StalenessWindow != 10*time.Second {
		t.Fatalf("garbage env must fall back to defaults, got %v", c.Feed.StalenessWindow)
	}
	if c.Confidence.BaseThreshold != 0.45 {
		t.Fatalf("negative env threshold must be ignored, got %v", c.Confidence.BaseThreshold)
	}
}
