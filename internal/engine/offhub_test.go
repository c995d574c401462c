package engine

import (
	"math"
	"testing"
)

func TestOffHubMargin(t *testing.T) {
	tests := []struct {
		name                     string
		buy, sell, fee, tax      float64
		buyFee, sellFee, sellTax bool
		want                     float64
		wantOK                   bool
	}{
		{"no fees", 100, 110, 0.03, 0.075, false, false, false, 10, true},
		{"buy fee only", 100, 110, 0.03, 0.075, true, false, false, (110 - 103) / 103.0 * 100, true},
		{"sell side only", 100, 110, 0.03, 0.075, false, true, true, (110*0.97*0.925 - 100) / 100 * 100, true},
		{"all legs", 100, 110, 0.03, 0.075, true, true, true, (110*0.97*0.925 - 103) / 103 * 100, true},
		{"negative fee ignored", 100, 110, -1, 0, true, true, false, 10, true},
		{"free purchase", 0, 110, 0, 0, false, false, false, 0, false},
		{"negative price", -1, 110, 0, 0, false, false, false, 0, false},
		{"NaN sell", 100, math.NaN(), 0, 0, false, false, false, 0, false},
		{"infinite buy", math.Inf(1), 110, 0, 0, false, false, false, 0, false},
	}
	for _, tt := range tests {
		got, ok := OffHubMargin(tt.buy, tt.sell, tt.fee, tt.tax, tt.buyFee, tt.sellFee, tt.sellTax)
		if ok != tt.wantOK {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if ok && math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: margin = %v, want %v", tt.name, got, tt.want)
		}
	}
}
