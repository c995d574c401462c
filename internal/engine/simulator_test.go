package engine

import (
	"math"
	"testing"

	"eve-hubcompare/internal/market"
)

func f(v float64) *float64 { return &v }

func entry(buys, sells []market.Level) market.Entry {
	return market.BuildEntry(append([]market.Level(nil), buys...), append([]market.Level(nil), sells...), 150)
}

func TestWalkLadders_ZeroFeesEqualVolume(t *testing.T) {
	acquire := []market.Level{{Price: 10, Volume: 30}, {Price: 10, Volume: 70}}
	dispose := []market.Level{{Price: 10, Volume: 60}, {Price: 10, Volume: 40}}

	w := WalkLadders(acquire, dispose, 100, WalkFees{}, 0)
	if w.Filled != 100 {
		t.Errorf("Filled = %d, want 100", w.Filled)
	}
	if w.Cost != w.Revenue {
		t.Errorf("Cost/Revenue = %v/%v, want equal", w.Cost, w.Revenue)
	}
	if acquire[0].Volume != 30 || dispose[0].Volume != 60 {
		t.Error("WalkLadders modified its inputs")
	}
}

func TestSimulate_ZeroFeesEqualVolumeIsZeroMargin(t *testing.T) {
	c := market.Commodity{Name: "Tritanium", Hubs: map[string]market.Entry{
		"Jita":  entry(nil, []market.Level{{Price: 5, Volume: 400}, {Price: 5, Volume: 600}}),
		"Amarr": entry([]market.Level{{Price: 5, Volume: 1000}}, nil),
	}}
	res := Simulate(c, SimParams{BuyMode: ModeSell, SellMode: ModeBuy})
	if res == nil {
		t.Fatal("Simulate = nil")
	}
	if res.FilledQty != 1000 {
		t.Errorf("FilledQty = %d, want 1000", res.FilledQty)
	}
	if res.MarginPct != 0 {
		t.Errorf("MarginPct = %v, want 0", res.MarginPct)
	}
	if res.BuyHub != "Jita" || res.SellHub != "Amarr" {
		t.Errorf("hubs = %s -> %s, want Jita -> Amarr", res.BuyHub, res.SellHub)
	}
}

func TestWalkLadders_EarlyExit(t *testing.T) {
	// Second lot drags the cumulative margin below 10%; the third lot alone
	// would be very profitable but must not be reached.
	acquire := []market.Level{{Price: 10, Volume: 100}, {Price: 12, Volume: 100}, {Price: 1, Volume: 100}}
	dispose := []market.Level{{Price: 12, Volume: 300}}

	w := WalkLadders(acquire, dispose, 300, WalkFees{}, 10)
	if w.Filled != 100 {
		t.Errorf("Filled = %d, want 100", w.Filled)
	}
	if w.Cost != 1000 || w.Revenue != 1200 {
		t.Errorf("Cost/Revenue = %v/%v, want 1000/1200", w.Cost, w.Revenue)
	}
}

func TestWalkLadders_FeesApplied(t *testing.T) {
	acquire := []market.Level{{Price: 100, Volume: 10}}
	dispose := []market.Level{{Price: 200, Volume: 10}}

	w := WalkLadders(acquire, dispose, 10, WalkFees{BuyFee: 0.01, SellFee: 0.02, Tax: 0.05}, -100)
	wantCost := 1000 * 1.01
	wantRev := 2000 * 0.98 * 0.95
	if math.Abs(w.Cost-wantCost) > 1e-9 || math.Abs(w.Revenue-wantRev) > 1e-9 {
		t.Errorf("Cost/Revenue = %v/%v, want %v/%v", w.Cost, w.Revenue, wantCost, wantRev)
	}
}

func TestWalkLadders_TotalCap(t *testing.T) {
	acquire := []market.Level{{Price: 1e10, Volume: 1e6}}
	dispose := []market.Level{{Price: 2e10, Volume: 1e6}}
	w := WalkLadders(acquire, dispose, 1e6, WalkFees{}, 0)
	if w.Filled != 0 {
		t.Errorf("Filled = %d, want 0 when first step exceeds 1e15", w.Filled)
	}
}

func TestSimulate_HubSelection(t *testing.T) {
	c := market.Commodity{Hubs: map[string]market.Entry{
		"Jita":    entry([]market.Level{{Price: 4.0, Volume: 10}}, []market.Level{{Price: 4.5, Volume: 10}}),
		"Amarr":   entry([]market.Level{{Price: 4.2, Volume: 10}}, []market.Level{{Price: 4.8, Volume: 10}}),
		"Dodixie": entry([]market.Level{{Price: 3.9, Volume: 10}}, []market.Level{{Price: 5.5, Volume: 10}}),
		"Hek":     market.NoData(),
	}}

	cases := []struct {
		buy, sell         Mode
		allowed           []string
		wantBuy, wantSell string
	}{
		{ModeBuy, ModeSell, nil, "Dodixie", "Dodixie"},
		{ModeSell, ModeBuy, nil, "Jita", "Amarr"},
		{ModeBuy, ModeBuy, nil, "Dodixie", "Amarr"},
		{ModeSell, ModeSell, []string{"Jita", "Amarr"}, "Jita", "Amarr"},
	}
	for _, tc := range cases {
		res := Simulate(c, SimParams{BuyMode: tc.buy, SellMode: tc.sell, AllowedHubs: tc.allowed, MinMarginPct: -100})
		if res == nil {
			t.Fatalf("Simulate(%s,%s) = nil", tc.buy, tc.sell)
		}
		if res.BuyHub != tc.wantBuy || res.SellHub != tc.wantSell {
			t.Errorf("Simulate(%s,%s) hubs = %s -> %s, want %s -> %s", tc.buy, tc.sell, res.BuyHub, res.SellHub, tc.wantBuy, tc.wantSell)
		}
	}
}

func TestSimulate_QuantityCeiling(t *testing.T) {
	c := market.Commodity{Hubs: map[string]market.Entry{
		"Jita":  entry([]market.Level{{Price: 4, Volume: 1}}, []market.Level{{Price: 5, Volume: 500}}),
		"Amarr": entry([]market.Level{{Price: 6, Volume: 1}}, []market.Level{{Price: 7, Volume: 1}}),
	}}

	// Synthetic legs only: default cap.
	res := Simulate(c, SimParams{BuyMode: ModeBuy, SellMode: ModeSell})
	if res == nil || res.FilledQty != DefaultQuantityCap {
		t.Errorf("synthetic fill = %+v, want %d", res, DefaultQuantityCap)
	}
	// Synthetic legs with a limit.
	res = Simulate(c, SimParams{BuyMode: ModeBuy, SellMode: ModeSell, QuantityLimit: 250})
	if res == nil || res.FilledQty != 250 {
		t.Errorf("limited synthetic fill = %+v, want 250", res)
	}
	// Buy leg ladders through 500 units of Jita sells; limit above depth is capped.
	res = Simulate(c, SimParams{BuyMode: ModeSell, SellMode: ModeSell, QuantityLimit: 10_000})
	if res == nil || res.FilledQty != 500 {
		t.Errorf("ladder fill = %+v, want 500", res)
	}
}

func TestSimulate_NilCases(t *testing.T) {
	empty := market.Commodity{Hubs: map[string]market.Entry{"Jita": market.NoData()}}
	if res := Simulate(empty, SimParams{}); res != nil {
		t.Errorf("Simulate(no prices) = %+v, want nil", res)
	}

	c := market.Commodity{Hubs: map[string]market.Entry{
		"Jita":  entry(nil, []market.Level{{Price: 10, Volume: 5}}),
		"Amarr": entry([]market.Level{{Price: 9, Volume: 5}}, nil),
	}}
	if res := Simulate(c, SimParams{BuyMode: ModeSell, SellMode: ModeBuy}); res != nil {
		t.Errorf("Simulate(losing first step) = %+v, want nil", res)
	}
	if res := Simulate(c, SimParams{BuyMode: ModeSell, SellMode: ModeBuy, AllowedHubs: []string{"Hek"}}); res != nil {
		t.Errorf("Simulate(no allowed hub) = %+v, want nil", res)
	}
}

func TestSimulate_FeesByHub(t *testing.T) {
	c := market.Commodity{Hubs: map[string]market.Entry{
		"Jita":  entry([]market.Level{{Price: 100, Volume: 10}}, nil),
		"Amarr": entry(nil, []market.Level{{Price: 200, Volume: 10}}),
	}}
	fees := FeeTable{
		Brokerage: map[string]float64{"Jita": 0.01, "Amarr": 0.02},
		Tax:       map[string]float64{"Jita": 0.03, "Amarr": 0.05},
	}
	res := Simulate(c, SimParams{BuyMode: ModeBuy, SellMode: ModeSell, Fees: fees, QuantityLimit: 10})
	if res == nil {
		t.Fatal("Simulate = nil")
	}
	wantCost := 1000 * 1.01
	wantRev := 2000 * 0.98 * 0.95
	if math.Abs(res.Investment-wantCost) > 1e-9 {
		t.Errorf("Investment = %v, want %v", res.Investment, wantCost)
	}
	if math.Abs(res.Profit-(wantRev-wantCost)) > 1e-9 {
		t.Errorf("Profit = %v, want %v", res.Profit, wantRev-wantCost)
	}
}
