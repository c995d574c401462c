// Package engine simulates cross-hub trades over order book snapshots.
package engine

import (
	"math"
	"sort"

	"eve-hubcompare/internal/market"
)

// Mode selects which side of the book a leg trades against.
//
//	buy leg,  ModeBuy:  place a buy order at the lowest best-buy (brokerage added)
//	buy leg,  ModeSell: fill existing sell orders (ladder)
//	sell leg, ModeBuy:  fill existing buy orders (ladder, tax only)
//	sell leg, ModeSell: place a sell order at the highest best-sell (brokerage + tax)
type Mode string

const (
	ModeBuy  Mode = "buy"
	ModeSell Mode = "sell"
)

const (
	// DefaultQuantityCap bounds legs that do not walk a real ladder.
	DefaultQuantityCap int64 = 100_000
	// maxTotal caps running cost and revenue.
	maxTotal = 1e15
)

// SimParams configures Simulate.
type SimParams struct {
	BuyMode       Mode
	SellMode      Mode
	AllowedHubs   []string // empty = every hub in the commodity
	Fees          FeeTable
	MinMarginPct  float64
	QuantityLimit int64 // 0 = none
}

// TradeResult is a simulated two-leg trade.
type TradeResult struct {
	BuyHub     string  `json:"buy_hub"`
	SellHub    string  `json:"sell_hub"`
	FilledQty  int64   `json:"filled_qty"`
	Investment float64 `json:"investment"`
	Profit     float64 `json:"profit"`
	MarginPct  float64 `json:"margin_pct"`
}

// WalkFees are the rates applied per step by WalkLadders.
type WalkFees struct {
	BuyFee  float64 // added to cost
	SellFee float64 // deducted from revenue
	Tax     float64 // deducted from revenue after SellFee
}

// Walk is the outcome of WalkLadders.
type Walk struct {
	Filled  int64
	Cost    float64
	Revenue float64
}

// WalkLadders matches acquisitions (cheapest first) against disposals
// (dearest first) two pointers at a time. Each step fills the smaller of the
// two remaining lots and the remaining ceiling. A step that would drop the
// cumulative margin below minMarginPct, or push either total past 1e15 or
// out of the finite range, is not committed and ends the walk. The inputs
// are not modified.
func WalkLadders(acquire, dispose []market.Level, maxUnits int64, fees WalkFees, minMarginPct float64) Walk {
	var w Walk
	bi, si := 0, 0
	var usedB, usedS int64
	for w.Filled < maxUnits && bi < len(acquire) && si < len(dispose) {
		step := min(acquire[bi].Volume-usedB, dispose[si].Volume-usedS, maxUnits-w.Filled)
		if step <= 0 {
			break
		}
		stepCost := acquire[bi].Price * float64(step)
		stepRev := dispose[si].Price * float64(step)
		if !finite(stepCost) || !finite(stepRev) {
			break
		}
		stepCost += stepCost * fees.BuyFee
		stepRev -= stepRev * fees.SellFee
		stepRev -= stepRev * fees.Tax

		newCost, newRev := w.Cost+stepCost, w.Revenue+stepRev
		if !finite(newCost) || !finite(newRev) || newCost > maxTotal || newRev > maxTotal {
			break
		}
		margin := 0.0
		if newCost > 0 {
			margin = (newRev - newCost) / newCost * 100
		}
		if margin < minMarginPct {
			break
		}

		w.Cost, w.Revenue = newCost, newRev
		w.Filled += step
		usedB += step
		usedS += step
		if usedB >= acquire[bi].Volume {
			bi++
			usedB = 0
		}
		if usedS >= dispose[si].Volume {
			si++
			usedS = 0
		}
	}
	return w
}

// Simulate picks the buy and sell hubs for one commodity and walks the
// resulting legs. It returns nil when no hub pair qualifies, nothing fills,
// or a result is not finite.
func Simulate(c market.Commodity, p SimParams) *TradeResult {
	if p.BuyMode != ModeBuy {
		p.BuyMode = ModeSell
	}
	if p.SellMode != ModeSell {
		p.SellMode = ModeBuy
	}
	hubs := allowedHubs(c, p.AllowedHubs)

	var buyHub, sellHub string
	var buyPrice, sellPrice float64
	var ok bool
	if p.BuyMode == ModeBuy {
		buyHub, buyPrice, ok = pickHub(c, hubs, bestBuy, false)
	} else {
		buyHub, buyPrice, ok = pickHub(c, hubs, bestSell, false)
	}
	if !ok {
		return nil
	}
	if p.SellMode == ModeSell {
		sellHub, sellPrice, ok = pickHub(c, hubs, bestSell, true)
	} else {
		sellHub, sellPrice, ok = pickHub(c, hubs, bestBuy, true)
	}
	if !ok {
		return nil
	}

	buyLadder := p.BuyMode == ModeSell
	sellLadder := p.SellMode == ModeBuy

	var acquire, dispose []market.Level
	if buyLadder {
		acquire = cleanLadder(c.Hubs[buyHub].SellOrders, false)
	}
	if sellLadder {
		dispose = cleanLadder(c.Hubs[sellHub].BuyOrders, true)
	}

	var ceiling int64
	switch {
	case buyLadder || sellLadder:
		bound := int64(math.MaxInt64)
		if buyLadder {
			bound = min(bound, totalVolume(acquire))
		}
		if sellLadder {
			bound = min(bound, totalVolume(dispose))
		}
		if bound <= 0 {
			return nil
		}
		ceiling = bound
		if p.QuantityLimit > 0 {
			ceiling = min(p.QuantityLimit, bound)
		}
	case p.QuantityLimit > 0:
		ceiling = min(p.QuantityLimit, DefaultQuantityCap)
	default:
		ceiling = DefaultQuantityCap
	}

	if !buyLadder {
		acquire = []market.Level{{Price: buyPrice, Volume: ceiling}}
	}
	if !sellLadder {
		dispose = []market.Level{{Price: sellPrice, Volume: ceiling}}
	}

	fees := WalkFees{Tax: p.Fees.Tax[sellHub]}
	if p.BuyMode == ModeBuy {
		fees.BuyFee = p.Fees.Brokerage[buyHub]
	}
	if p.SellMode == ModeSell {
		fees.SellFee = p.Fees.Brokerage[sellHub]
	}

	w := WalkLadders(acquire, dispose, ceiling, fees, p.MinMarginPct)
	if w.Filled <= 0 {
		return nil
	}
	profit := w.Revenue - w.Cost
	margin := 0.0
	if w.Cost > 0 {
		margin = profit / w.Cost * 100
	}
	if !finite(profit) || !finite(margin) {
		return nil
	}
	return &TradeResult{
		BuyHub:     buyHub,
		SellHub:    sellHub,
		FilledQty:  w.Filled,
		Investment: w.Cost,
		Profit:     profit,
		MarginPct:  margin,
	}
}

func bestBuy(e market.Entry) *float64  { return e.BestBuy }
func bestSell(e market.Entry) *float64 { return e.BestSell }

// allowedHubs returns the hub names to consider in a stable order.
func allowedHubs(c market.Commodity, allowed []string) []string {
	var hubs []string
	if len(allowed) == 0 {
		for name := range c.Hubs {
			hubs = append(hubs, name)
		}
		sort.Strings(hubs)
		return hubs
	}
	for _, name := range allowed {
		if _, ok := c.Hubs[name]; ok {
			hubs = append(hubs, name)
		}
	}
	return hubs
}

// pickHub returns the hub with the lowest (or highest) price for field,
// skipping hubs without one. Ties keep the first hub.
func pickHub(c market.Commodity, hubs []string, field func(market.Entry) *float64, highest bool) (string, float64, bool) {
	var bestHub string
	var best float64
	found := false
	for _, name := range hubs {
		p := field(c.Hubs[name])
		if p == nil || !finite(*p) || *p <= 0 {
			continue
		}
		if !found || (highest && *p > best) || (!highest && *p < best) {
			bestHub, best, found = name, *p, true
		}
	}
	return bestHub, best, found
}

// cleanLadder drops non-positive levels and sorts best-first.
func cleanLadder(levels []market.Level, descending bool) []market.Level {
	out := make([]market.Level, 0, len(levels))
	for _, l := range levels {
		if finite(l.Price) && l.Price > 0 && l.Volume > 0 {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

func totalVolume(levels []market.Level) int64 {
	var sum int64
	for _, l := range levels {
		sum += l.Volume
	}
	return sum
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// sanitizeFloat replaces NaN/Inf with 0 to prevent JSON marshal errors.
func sanitizeFloat(f float64) float64 {
	if !finite(f) {
		return 0
	}
	return f
}
