package esi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_RejectsForeignHost(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	for _, u := range []string{
		"http://evil.example/markets/1/orders/",
		strings.Replace(srv.URL, "http://", "https://", 1) + "/status/",
		"::bad",
	} {
		_, err := c.Get(context.Background(), u, nil)
		if !errors.Is(err, ErrHostNotAllowed) {
			t.Errorf("Get(%s) err = %v, want ErrHostNotAllowed", u, err)
		}
	}
	if hits != 0 {
		t.Errorf("server hits = %d, want 0", hits)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Get(context.Background(), srv.URL+"/status/", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if hits != 3 {
		t.Errorf("hits = %d, want 3", hits)
	}
}

func TestClient_ReturnsLastResponseAfterRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Get(context.Background(), srv.URL+"/status/", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
	if hits != 3 {
		t.Errorf("hits = %d, want 3", hits)
	}
}

func TestClient_RateLimitWaitHonoursHintAndCap(t *testing.T) {
	var waits []time.Duration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.opts.MaxRateLimitWait = 2 * time.Second
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	resp, err := c.Get(context.Background(), srv.URL+"/status/", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", resp.StatusCode)
	}
	// No sleep after the final attempt.
	if len(waits) != 2 {
		t.Fatalf("waits = %v, want 2 entries", waits)
	}
	for _, w := range waits {
		if w != 2*time.Second {
			t.Errorf("wait = %s, want capped 2s", w)
		}
	}
}

func TestClient_LowRemainingPause(t *testing.T) {
	var waits []time.Duration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ESI-Error-Limit-Remain", "5")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	if _, err := c.Get(context.Background(), srv.URL+"/status/", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(waits) != 1 || waits[0] != time.Millisecond {
		t.Errorf("waits = %v, want [1ms]", waits)
	}
}

func TestClient_GetJSONPayloadCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"system_id":30000142,"name":"` + strings.Repeat("x", 256) + `"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.opts.MaxPayloadBytes = 64
	var dst map[string]interface{}
	err := c.GetJSON(context.Background(), srv.URL+"/universe/stations/1/", &dst)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("GetJSON err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestClient_GetJSONNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	var dst map[string]interface{}
	if err := c.GetJSON(context.Background(), srv.URL+"/universe/stations/1/", &dst); err == nil {
		t.Fatal("GetJSON(404) err = nil")
	}
}
