// Package market builds per-hub order book snapshots from paginated ESI
// order listings.
package market

import (
	"eve-hubcompare/internal/catalog"
)

// Level is one order on a ladder.
type Level struct {
	Price  float64 `json:"price"`
	Volume int64   `json:"vol"`
}

// Trends holds the buy-side and sell-side price trends of an entry.
type Trends struct {
	Buy  *Trend `json:"buy"`
	Sell *Trend `json:"sell"`
}

// Entry is the order book summary of one commodity in one hub.
// A nil best price means "no data" on that side.
type Entry struct {
	BestBuy    *float64 `json:"best_buy"`
	BestSell   *float64 `json:"best_sell"`
	BuyVolume  int64    `json:"buy_volume"`
	SellVolume int64    `json:"sell_volume"`
	BuyOrders  []Level  `json:"buy_orders"`  // price descending
	SellOrders []Level  `json:"sell_orders"` // price ascending
	Trend      Trends   `json:"trend"`
}

// NoData returns the sentinel entry for a hub without usable orders.
func NoData() Entry {
	return Entry{BuyOrders: []Level{}, SellOrders: []Level{}}
}

// HasPrice reports whether at least one side has a best price.
func (e Entry) HasPrice() bool {
	return e.BestBuy != nil || e.BestSell != nil
}

// Commodity groups the per-hub entries of one commodity.
type Commodity struct {
	Name string           `json:"name"`
	Hubs map[string]Entry `json:"hubs"`
}

// Snapshot maps commodity id to its per-hub order books.
type Snapshot map[int32]Commodity

// Empty returns a snapshot holding a sentinel entry for every catalog pair.
func Empty(cat *catalog.Catalog) Snapshot {
	snap := make(Snapshot, len(cat.Commodities))
	for _, c := range cat.Commodities {
		hubs := make(map[string]Entry, len(cat.Hubs))
		for _, h := range cat.Hubs {
			hubs[h.Name] = NoData()
		}
		snap[c.ID] = Commodity{Name: c.Name, Hubs: hubs}
	}
	return snap
}

// Entry returns the entry for (commodity, hub) if present.
func (s Snapshot) Entry(typeID int32, hub string) (Entry, bool) {
	c, ok := s[typeID]
	if !ok {
		return Entry{}, false
	}
	e, ok := c.Hubs[hub]
	return e, ok
}

// Ready reports whether the snapshot carries at least one real price.
func (s Snapshot) Ready() bool {
	for _, c := range s {
		for _, e := range c.Hubs {
			if e.HasPrice() {
				return true
			}
		}
	}
	return false
}

// Complete fills any missing commodity or hub of the catalog with sentinels.
func (s Snapshot) Complete(cat *catalog.Catalog) Snapshot {
	if s == nil {
		return Empty(cat)
	}
	for _, c := range cat.Commodities {
		com, ok := s[c.ID]
		if !ok {
			com = Commodity{Name: c.Name}
		}
		if com.Hubs == nil {
			com.Hubs = make(map[string]Entry, len(cat.Hubs))
		}
		for _, h := range cat.Hubs {
			if _, ok := com.Hubs[h.Name]; !ok {
				com.Hubs[h.Name] = NoData()
			}
		}
		s[c.ID] = com
	}
	return s
}
