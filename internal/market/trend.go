package market

import (
	"eve-hubcompare/internal/esi"
)

const (
	// TrendWindow is the number of days in the trailing baseline.
	TrendWindow = 30

	DirectionUp   = "up"
	DirectionDown = "down"
	DirectionFlat = "flat"
)

// Trend compares today's value of a history field against the trailing mean.
type Trend struct {
	Today     *float64 `json:"today"`
	Avg       *float64 `json:"avg"`
	PctDelta  *float64 `json:"pct_delta"`
	Direction string   `json:"direction"`
}

func flat() *Trend {
	return &Trend{Direction: DirectionFlat}
}

// ComputeTrend takes the newest sample as today and the TrendWindow samples
// before it as the baseline. The mean only counts samples where field is
// present. Too little history, a missing today value or a zero mean yield a
// flat trend with no numbers.
func ComputeTrend(history []esi.HistoryEntry, field string) *Trend {
	if len(history) < TrendWindow+1 {
		return flat()
	}
	sorted := make([]esi.HistoryEntry, len(history))
	copy(sorted, history)
	esi.SortHistory(sorted)

	n := len(sorted)
	today, ok := sorted[n-1].Field(field)
	if !ok || today == 0 {
		return flat()
	}

	var sum float64
	var count int
	for _, e := range sorted[n-1-TrendWindow : n-1] {
		if v, ok := e.Field(field); ok {
			sum += v
			count++
		}
	}
	if count == 0 || sum == 0 {
		return flat()
	}
	avg := sum / float64(count)
	pct := (today - avg) / avg * 100

	dir := DirectionFlat
	switch {
	case pct > 0:
		dir = DirectionUp
	case pct < 0:
		dir = DirectionDown
	}
	return &Trend{Today: &today, Avg: &avg, PctDelta: &pct, Direction: dir}
}
