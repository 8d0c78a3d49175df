package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "kusama" || r.URL.Query().Get("vs_currencies") != "usd" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"kusama":{"usd":31.25}}`))
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL, IDs: map[string]string{"KSM": "kusama"}})
	price := client.Lookup(context.Background(), "KSM")
	if !price.Available || price.USD != 31.25 || price.Symbol != "KSM" {
		t.Fatalf("unexpected price %+v", price)
	}
}

func TestLookupFailsSoft(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer broken.Close()
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer empty.Close()

	clients := map[string]*Client{
		"timeout": NewClient(Config{URL: slow.URL, Timeout: 20 * time.Millisecond}),
		"status":  NewClient(Config{URL: broken.URL}),
		"missing": NewClient(Config{URL: empty.URL}),
		"nil":     NewClient(Config{}),
	}
	for name, client := range clients {
		price := client.Lookup(context.Background(), "KSM")
		if price.Available || price.Symbol != "KSM" {
			t.Errorf("%s: expected unavailable price, got %+v", name, price)
		}
	}
}
