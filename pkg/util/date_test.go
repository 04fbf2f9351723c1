package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2026-03-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2026, 3, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2026, 3, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
	got = ParseTimeDefault("garbage", def)
	if !got.Equal(def) {
		t.Fatalf("expected default for invalid input")
	}
}

func TestAlignRange(t *testing.T) {
	from := time.Date(2026, 3, 10, 10, 10, 10, 500_000_000, time.UTC)
	to := time.Date(2026, 3, 10, 11, 10, 10, 900_000_000, time.UTC)
	af, at := AlignRange(from, to, time.Second)
	if af.Nanosecond() != 0 || at.Nanosecond() != 0 {
		t.Fatalf("expected whole seconds, got %v / %v", af, at)
	}
	af, at = AlignRange(from, to, 0)
	if !af.Equal(from) || !at.Equal(to) {
		t.Fatalf("zero step must leave range untouched")
	}
}

func TestParseIntDefault(t *testing.T) {
	if got := ParseIntDefault("", 42); got != 42 {
		t.Fatalf("expected default, got %d", got)
	}
	if got := ParseIntDefault("x", 42); got != 42 {
		t.Fatalf("expected default for invalid, got %d", got)
	}
	if got := ParseIntDefault("7", 42); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}
