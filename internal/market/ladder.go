package market

import (
	"math"
	"sort"
)

const (
	// PriceEpsilon is the absolute tolerance for treating two prices as a tie.
	PriceEpsilon = 1e-6
	// MaxPrice and MaxVolume bound accepted order values.
	MaxPrice  = 1e10
	MaxVolume = int64(1e12)
	// DefaultDepth is the ladder truncation depth.
	DefaultDepth = 150
)

// ValidOrder reports whether price and volume are within accepted ranges.
func ValidOrder(price float64, volume int64) bool {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return false
	}
	return price > 0 && price <= MaxPrice && volume > 0 && volume <= MaxVolume
}

// BuildEntry sorts both ladders (buys descending, sells ascending), derives
// the best price and volume at best on each side, and truncates to depth.
// The input slices are reordered in place.
func BuildEntry(buys, sells []Level, depth int) Entry {
	if depth <= 0 {
		depth = DefaultDepth
	}
	sort.SliceStable(buys, func(i, j int) bool { return buys[i].Price > buys[j].Price })
	sort.SliceStable(sells, func(i, j int) bool { return sells[i].Price < sells[j].Price })

	e := NoData()
	e.BestBuy, e.BuyVolume = volumeAtBest(buys)
	e.BestSell, e.SellVolume = volumeAtBest(sells)
	e.BuyOrders = truncate(buys, depth)
	e.SellOrders = truncate(sells, depth)
	return e
}

// volumeAtBest sums the volume of every level within PriceEpsilon of the
// first (best) level. levels must already be sorted best-first.
func volumeAtBest(levels []Level) (*float64, int64) {
	if len(levels) == 0 {
		return nil, 0
	}
	best := levels[0].Price
	var vol int64
	for _, l := range levels {
		if math.Abs(l.Price-best) > PriceEpsilon {
			break
		}
		vol += l.Volume
	}
	return &best, vol
}

func truncate(levels []Level, depth int) []Level {
	if len(levels) > depth {
		levels = levels[:depth]
	}
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}
