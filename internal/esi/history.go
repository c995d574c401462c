package esi

import (
	"context"
	"sort"
)

// HistoryEntry represents a single day of market history for an item in a region.
// Price fields are pointers because ESI omits them on days without trades.
type HistoryEntry struct {
	Date       string   `json:"date"`
	Average    *float64 `json:"average"`
	Highest    *float64 `json:"highest"`
	Lowest     *float64 `json:"lowest"`
	Volume     int64    `json:"volume"`
	OrderCount int64    `json:"order_count"`
}

// Field returns the named price field ("average", "highest", "lowest").
func (e HistoryEntry) Field(name string) (float64, bool) {
	var p *float64
	switch name {
	case "average":
		p = e.Average
	case "highest":
		p = e.Highest
	case "lowest":
		p = e.Lowest
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// HistoryCache is a persistent cache for market history data.
type HistoryCache interface {
	GetMarketHistory(regionID int32, typeID int32) ([]HistoryEntry, bool)
	SetMarketHistory(regionID int32, typeID int32, entries []HistoryEntry)
}

// HistoryFetcher fetches daily history, consulting the cache first.
type HistoryFetcher struct {
	client *Client
	cache  HistoryCache
}

// NewHistoryFetcher creates a fetcher; cache may be nil.
func NewHistoryFetcher(client *Client, cache HistoryCache) *HistoryFetcher {
	return &HistoryFetcher{client: client, cache: cache}
}

// History returns the daily series for a type in a region sorted by date.
func (h *HistoryFetcher) History(ctx context.Context, regionID, typeID int32) ([]HistoryEntry, error) {
	if h.cache != nil {
		if entries, ok := h.cache.GetMarketHistory(regionID, typeID); ok {
			return entries, nil
		}
	}
	entries, err := h.FetchMarketHistory(ctx, regionID, typeID)
	if err != nil {
		return nil, err
	}
	if h.cache != nil && len(entries) > 0 {
		h.cache.SetMarketHistory(regionID, typeID, entries)
	}
	return entries, nil
}

// FetchMarketHistory fetches market history for a type in a region from ESI.
// ESI does not guarantee chronological order, so the result is sorted.
func (h *HistoryFetcher) FetchMarketHistory(ctx context.Context, regionID, typeID int32) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := h.client.GetJSON(ctx, HistoryURL(h.client.BaseURL(), regionID, typeID), &entries); err != nil {
		return nil, err
	}
	SortHistory(entries)
	return entries, nil
}

// SortHistory orders entries by date ascending in place.
func SortHistory(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date < entries[j].Date
	})
}
