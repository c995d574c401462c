package esi

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// newTestClient returns a client pointed at base with sleeping disabled.
func newTestClient(t *testing.T, base string) *Client {
	t.Helper()
	c, err := NewClient(Options{
		BaseURL:               base,
		MaxRetries:            3,
		BackoffBase:           time.Millisecond,
		LowRemainingThreshold: 20,
		LowRemainingPause:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func TestRawOrder_UnmarshalJSON(t *testing.T) {
	raw := `{"order_id":1,"type_id":34,"location_id":60003760,"system_id":30000142,"price":4.5,"volume_remain":100000,"is_buy_order":false}`
	var o RawOrder
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if o.OrderID != 1 || o.TypeID != 34 || *o.LocationID != 60003760 || o.SystemID != 30000142 {
		t.Errorf("RawOrder = %+v", o)
	}
	if *o.Price != 4.5 || *o.VolumeRemain != 100000 {
		t.Errorf("Price/VolumeRemain = %v/%v", *o.Price, *o.VolumeRemain)
	}
	if *o.IsBuyOrder {
		t.Error("IsBuyOrder want false")
	}
	if !o.Complete() {
		t.Error("Complete() = false, want true")
	}
}

func TestRawOrder_MissingFieldsIncomplete(t *testing.T) {
	for _, raw := range []string{
		`{"location_id":1,"volume_remain":5,"is_buy_order":true}`,
		`{"location_id":1,"price":2,"is_buy_order":true}`,
		`{"location_id":1,"price":2,"volume_remain":5}`,
		`{"price":2,"volume_remain":5,"is_buy_order":true}`,
	} {
		var o RawOrder
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			t.Fatalf("Unmarshal(%s): %v", raw, err)
		}
		if o.Complete() {
			t.Errorf("Complete(%s) = true, want false", raw)
		}
	}
}

func TestHistoryEntry_UnmarshalJSON(t *testing.T) {
	raw := `{"date":"2025-01-15","average":100.5,"highest":105,"lowest":98,"volume":50000,"order_count":12}`
	var h HistoryEntry
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if h.Date != "2025-01-15" || *h.Average != 100.5 || *h.Highest != 105 || *h.Lowest != 98 {
		t.Errorf("HistoryEntry = %+v", h)
	}
	if h.Volume != 50000 || h.OrderCount != 12 {
		t.Errorf("Volume/OrderCount = %v/%v", h.Volume, h.OrderCount)
	}
	if v, ok := h.Field("lowest"); !ok || v != 98 {
		t.Errorf("Field(lowest) = %v, %v", v, ok)
	}
}

func TestHistoryEntry_FieldMissing(t *testing.T) {
	var h HistoryEntry
	if err := json.Unmarshal([]byte(`{"date":"2025-01-15","volume":0}`), &h); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := h.Field("highest"); ok {
		t.Error("Field(highest) ok = true for missing value")
	}
	if _, ok := h.Field("median"); ok {
		t.Error("Field(median) ok = true for unknown name")
	}
}

func TestSortHistory(t *testing.T) {
	entries := []HistoryEntry{{Date: "2025-01-03"}, {Date: "2025-01-01"}, {Date: "2025-01-02"}}
	SortHistory(entries)
	for i, want := range []string{"2025-01-01", "2025-01-02", "2025-01-03"} {
		if entries[i].Date != want {
			t.Errorf("entries[%d].Date = %s, want %s", i, entries[i].Date, want)
		}
	}
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	if _, err := NewClient(Options{BaseURL: "not a url"}); err == nil {
		t.Fatal("NewClient(bad url) err = nil")
	}
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient(defaults): %v", err)
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL() = %s, want %s", c.BaseURL(), DefaultBaseURL)
	}
}

func TestURLs(t *testing.T) {
	base := "https://esi.example"
	if got := OrdersURL(base, 10000002, 34, 2); got != "https://esi.example/markets/10000002/orders/?datasource=tranquility&order_type=all&type_id=34&page=2" {
		t.Errorf("OrdersURL = %s", got)
	}
	if got := StationURL(base, 60003760); got != "https://esi.example/universe/stations/60003760/?datasource=tranquility" {
		t.Errorf("StationURL = %s", got)
	}
	if got := HistoryURL(base, 10000002, 34); got != "https://esi.example/markets/10000002/history/?datasource=tranquility&type_id=34" {
		t.Errorf("HistoryURL = %s", got)
	}
}
