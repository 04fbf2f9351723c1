package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PaperPulse/internal/domain/models"
)

func TestFetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/simple/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("ids") != "bitcoin" || q.Get("vs_currencies") != "usd" {
			t.Errorf("unexpected query %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bitcoin":{"usd":50250.75}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	p, err := c.FetchPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Price != 50250.75 {
		t.Fatalf("unexpected price %v", p.Price)
	}
	if p.Source != models.SourceRestBackup {
		t.Fatalf("unexpected source %s", p.Source)
	}
}

func TestFetchPriceUnknownSymbol(t *testing.T) {
	c := New("http://unused", time.Second)
	if _, err := c.FetchPrice(context.Background(), "NOPEUSDT"); err == nil {
		t.Fatalf("expected error for unmapped symbol")
	}
}

func TestFetchPriceCustomMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "pepecoin" {
			t.Errorf("unexpected id %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pepecoin":{"usd":0.001}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, WithSymbolID("PEPEUSDT", "pepecoin"))
	p, err := c.FetchPrice(context.Background(), "PEPEUSDT")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Price != 0.001 {
		t.Fatalf("unexpected price %v", p.Price)
	}
}

func TestFetchPriceEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	if _, err := c.FetchPrice(context.Background(), "BTCUSDT"); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestFetchPriceRateLimited(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bitcoin":{"usd":50000}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	// Burn the whole local budget; the limiter must shed before the wire.
	for i := 0; i < 30; i++ {
		if _, err := c.FetchPrice(context.Background(), "BTCUSDT"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if _, err := c.FetchPrice(context.Background(), "BTCUSDT"); err == nil {
		t.Fatalf("expected rate limit error")
	}
	if calls != 30 {
		t.Fatalf("expected 30 upstream calls, got %d", calls)
	}
}
