package esi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"eve-hubcompare/internal/catalog"
)

type memLocations struct {
	mu sync.Mutex
	m  map[int64]int32
}

func (s *memLocations) GetLocation(id int64) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[id]
	return v, ok
}

func (s *memLocations) SetLocation(id int64, sys int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = sys
}

var jita = catalog.Hub{RegionID: 10000002, Name: "Jita", PrimarySystemID: 30000142, SecondarySystemID: 30000144}

func TestLocationResolver_Structures(t *testing.T) {
	r := NewLocationResolver(nil, nil)
	ctx := context.Background()

	sys, ok := r.Resolve(ctx, 1_035_466_617_946, jita)
	if !ok || sys != 30000144 {
		t.Errorf("structure in two-system hub = %d/%v, want 30000144", sys, ok)
	}

	single := catalog.Hub{RegionID: 10000030, Name: "Rens", PrimarySystemID: 30002510}
	sys, ok = r.Resolve(ctx, StructureIDThreshold, single)
	if !ok || sys != 30002510 {
		t.Errorf("structure in single-system hub = %d/%v, want 30002510", sys, ok)
	}
}

func TestLocationResolver_StationMemoized(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"station_id":60003760,"system_id":30000142,"name":"Jita IV - Moon 4"}`))
	}))
	defer srv.Close()

	store := &memLocations{m: make(map[int64]int32)}
	r := NewLocationResolver(newTestClient(t, srv.URL), store)
	for i := 0; i < 3; i++ {
		sys, ok := r.Resolve(context.Background(), 60003760, jita)
		if !ok || sys != 30000142 {
			t.Fatalf("Resolve #%d = %d/%v", i, sys, ok)
		}
	}
	if hits != 1 {
		t.Errorf("upstream hits = %d, want 1", hits)
	}
	if sys, ok := store.GetLocation(60003760); !ok || sys != 30000142 {
		t.Errorf("store = %d/%v", sys, ok)
	}
}

func TestLocationResolver_FailureMemoized(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := &memLocations{m: make(map[int64]int32)}
	r := NewLocationResolver(newTestClient(t, srv.URL), store)
	for i := 0; i < 2; i++ {
		if _, ok := r.Resolve(context.Background(), 60000001, jita); ok {
			t.Fatalf("Resolve #%d ok = true, want false", i)
		}
	}
	if hits != 1 {
		t.Errorf("upstream hits = %d, want 1", hits)
	}

	// A fresh resolver sharing the store must not call upstream either.
	r2 := NewLocationResolver(newTestClient(t, srv.URL), store)
	if _, ok := r2.Resolve(context.Background(), 60000001, jita); ok {
		t.Error("Resolve from store ok = true, want false")
	}
	if hits != 1 {
		t.Errorf("upstream hits after restart = %d, want 1", hits)
	}
}

type memHistory struct {
	data map[[2]int32][]HistoryEntry
	sets int
}

func (m *memHistory) GetMarketHistory(r, ty int32) ([]HistoryEntry, bool) {
	e, ok := m.data[[2]int32{r, ty}]
	return e, ok
}

func (m *memHistory) SetMarketHistory(r, ty int32, e []HistoryEntry) {
	m.sets++
	m.data[[2]int32{r, ty}] = e
}

func TestHistoryFetcher_CachesAndSorts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`[{"date":"2025-01-02","lowest":5,"highest":6,"volume":1,"order_count":1},{"date":"2025-01-01","lowest":4,"highest":7,"volume":1,"order_count":1}]`))
	}))
	defer srv.Close()

	cache := &memHistory{data: make(map[[2]int32][]HistoryEntry)}
	h := NewHistoryFetcher(newTestClient(t, srv.URL), cache)
	for i := 0; i < 2; i++ {
		entries, err := h.History(context.Background(), 10000002, 34)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(entries) != 2 || entries[0].Date != "2025-01-01" {
			t.Fatalf("entries = %+v", entries)
		}
	}
	if hits != 1 || cache.sets != 1 {
		t.Errorf("hits/sets = %d/%d, want 1/1", hits, cache.sets)
	}
}
