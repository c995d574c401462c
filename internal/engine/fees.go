package engine

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"eve-hubcompare/internal/catalog"
	"eve-hubcompare/internal/config"
)

// SalesTax returns the sales tax rate (fraction) for an Accounting level.
func SalesTax(accounting int) float64 {
	return 0.075 * (1 - 0.11*float64(clampSkill(accounting)))
}

// BrokerFee returns the brokerage rate (fraction) for Broker Relations and
// effective faction/corp standings. Never negative.
func BrokerFee(brokerRelations int, faction, corp float64) float64 {
	fee := 0.03 - 0.003*float64(clampSkill(brokerRelations)) - 0.0003*faction - 0.0002*corp
	if fee < 0 {
		return 0
	}
	return fee
}

// EffectiveStanding applies Connections (positive base) or Diplomacy
// (negative base) to a raw standing, clamps to [-10, 10] and rounds to two
// decimals.
func EffectiveStanding(base float64, connections, diplomacy int) float64 {
	if base == 0 || math.IsNaN(base) {
		return 0
	}
	base = math.Max(-10, math.Min(10, base))
	skill := clampSkill(diplomacy)
	if base > 0 {
		skill = clampSkill(connections)
	}
	eff := base + (10-base)*0.04*float64(skill)
	eff = math.Max(-10, math.Min(10, eff))
	return decimal.NewFromFloat(eff).Round(2).InexactFloat64()
}

func clampSkill(level int) int {
	if level < 0 {
		return 0
	}
	if level > 5 {
		return 5
	}
	return level
}

// FeeTable holds per-hub brokerage and sales tax rates as fractions.
type FeeTable struct {
	Brokerage map[string]float64 `json:"brokerage"`
	Tax       map[string]float64 `json:"tax"`
}

// FeeTables derives the fee table for every catalog hub from the configured
// skills and standings.
func FeeTables(t config.TradingConfig, cat *catalog.Catalog) FeeTable {
	ft := FeeTable{
		Brokerage: make(map[string]float64, len(cat.Hubs)),
		Tax:       make(map[string]float64, len(cat.Hubs)),
	}
	tax := SalesTax(t.AccountingLevel)
	for _, h := range cat.Hubs {
		st := t.Standings[strings.ToLower(h.Name)]
		faction := EffectiveStanding(st.Faction, t.ConnectionsLevel, t.DiplomacyLevel)
		corp := EffectiveStanding(st.Corp, t.ConnectionsLevel, t.DiplomacyLevel)
		ft.Brokerage[h.Name] = BrokerFee(t.BrokerRelationsLevel, faction, corp)
		ft.Tax[h.Name] = tax
	}
	return ft
}

// Percent formats a fraction as a two-decimal percentage string.
func Percent(rate float64) string {
	return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
