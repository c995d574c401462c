package engine

import (
	"math"

	"eve-hubcompare/internal/catalog"
	"eve-hubcompare/internal/market"
)

const (
	// maxReasonableMargin flags margins beyond ±1000% as outliers.
	maxReasonableMargin = 1000
	// minBuyFloor flags sub-ISK buys paired with a 100x sell as outliers.
	minBuyFloor = 1.0
)

// NoUndockMargin is the single-hub margin of buying via a buy order and
// selling via a sell order in the same hub.
type NoUndockMargin struct {
	MarginPct float64 `json:"margin_pct"`
	Valid     bool    `json:"valid"`
	Outlier   bool    `json:"outlier"`
}

// NoUndock computes the no-undock margin for one hub entry:
// cost = buy*(1+fee), revenue = sell*(1-fee-tax).
func NoUndock(e market.Entry, brokerage, tax float64) NoUndockMargin {
	if e.BestBuy == nil || e.BestSell == nil {
		return NoUndockMargin{}
	}
	buy, sell := *e.BestBuy, *e.BestSell
	cost := buy * (1 + brokerage)
	rev := sell * (1 - brokerage - tax)
	if cost <= 0 || !finite(rev) {
		return NoUndockMargin{}
	}
	margin := (rev - cost) / cost * 100
	return NoUndockMargin{
		MarginPct: sanitizeFloat(margin),
		Valid:     true,
		Outlier:   isOutlier(margin, buy, sell),
	}
}

func isOutlier(margin, buy, sell float64) bool {
	if !finite(margin) || !finite(buy) || !finite(sell) || sell <= 0 {
		return true
	}
	if math.Abs(margin) > maxReasonableMargin {
		return true
	}
	return buy > 0 && buy < minBuyFloor && sell >= 100*buy
}

// NoUndockRow is the no-undock margin of one commodity in every hub.
type NoUndockRow struct {
	TypeID int32                     `json:"type_id"`
	Name   string                    `json:"name"`
	Hubs   map[string]NoUndockMargin `json:"hubs"`
}

// NoUndockTable computes NoUndock for every catalog pair in catalog order.
func NoUndockTable(snap market.Snapshot, cat *catalog.Catalog, fees FeeTable) []NoUndockRow {
	rows := make([]NoUndockRow, 0, len(cat.Commodities))
	for _, c := range cat.Commodities {
		row := NoUndockRow{TypeID: c.ID, Name: c.Name, Hubs: make(map[string]NoUndockMargin, len(cat.Hubs))}
		for _, h := range cat.Hubs {
			e, _ := snap.Entry(c.ID, h.Name)
			row.Hubs[h.Name] = NoUndock(e, fees.Brokerage[h.Name], fees.Tax[h.Name])
		}
		rows = append(rows, row)
	}
	return rows
}
