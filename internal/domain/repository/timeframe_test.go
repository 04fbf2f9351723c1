package repository

import (
	"testing"
	"time"
)

func TestNormalizeTimeframe(t *testing.T) {
	if got := NormalizeTimeframe(""); got != TF1m {
		t.Fatalf("empty must normalize to default, got %s", got)
	}
	if got := NormalizeTimeframe("4h"); got != TF4h {
		t.Fatalf("valid value must pass through, got %s", got)
	}
	if got := NormalizeTimeframe("42s"); got != TF1m {
		t.Fatalf("unknown value must fall back to default, got %s", got)
	}
}

func TestIsValidTimeframe(t *testing.T) {
	for _, tf := range []Timeframe{TF1m, TF5m, TF15m, TF1h, TF4h, TF1d} {
		if !IsValidTimeframe(tf) {
			t.Fatalf("%s should be valid", tf)
		}
	}
	if IsValidTimeframe(Timeframe("2h")) {
		t.Fatalf("2h should be invalid")
	}
}

func TestTimeframeDuration(t *testing.T) {
	cases := map[Timeframe]time.Duration{
		TF1m:  time.Minute,
		TF5m:  5 * time.Minute,
		TF15m: 15 * time.Minute,
		TF1h:  time.Hour,
		TF4h:  4 * time.Hour,
		TF1d:  24 * time.Hour,
	}
	for tf, want := range cases {
		if got := tf.Duration(); got != want {
			t.Fatalf("%s: got %v want %v", tf, got, want)
		}
	}
}

func TestIsIntraday(t *testing.T) {
	for _, tf := range []Timeframe{TF1m, TF5m, TF15m} {
		if !tf.IsIntraday() {
			t.Fatalf("%s should be intraday", tf)
		}
	}
	for _, tf := range []Timeframe{TF1h, TF4h, TF1d} {
		if tf.IsIntraday() {
			t.Fatalf("%s should not be intraday", tf)
		}
	}
}
