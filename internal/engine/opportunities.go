package engine

import (
	"sort"

	"eve-hubcompare/internal/catalog"
	"eve-hubcompare/internal/market"
)

// Opportunity is a profitable simulated trade for one commodity.
type Opportunity struct {
	TypeID int32  `json:"type_id"`
	Name   string `json:"name"`
	TradeResult
}

// ScanOpportunities simulates every catalog commodity and keeps trades with
// positive profit and a margin at or above the minimum, best margin first.
func ScanOpportunities(snap market.Snapshot, cat *catalog.Catalog, p SimParams) []Opportunity {
	if len(p.AllowedHubs) == 0 {
		p.AllowedHubs = cat.HubNames()
	}
	out := []Opportunity{}
	for _, c := range cat.Commodities {
		com, ok := snap[c.ID]
		if !ok {
			continue
		}
		res := Simulate(com, p)
		if res == nil || res.Profit <= 0 || res.MarginPct < p.MinMarginPct {
			continue
		}
		out = append(out, Opportunity{TypeID: c.ID, Name: c.Name, TradeResult: *res})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MarginPct > out[j].MarginPct })
	return out
}
