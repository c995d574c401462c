package engine

// OffHubQuantity is the lot the off-hub calculator prices so percentage fees
// apply at full scale.
const OffHubQuantity = 100_000

// OffHubMargin is the margin in percent of buying at buy and selling at sell
// outside the tracked hubs. fee and tax are fractions; the flags choose which
// legs pay them. It returns false when a price is negative or not finite, or
// the purchase costs nothing.
func OffHubMargin(buy, sell, fee, tax float64, buyFee, sellFee, sellTax bool) (float64, bool) {
	if !finite(buy) || !finite(sell) || buy < 0 || sell < 0 {
		return 0, false
	}
	if !finite(fee) || fee < 0 {
		fee = 0
	}
	if !finite(tax) || tax < 0 {
		tax = 0
	}

	totalBuy := buy * OffHubQuantity
	if buyFee {
		totalBuy *= 1 + fee
	}
	totalSell := sell * OffHubQuantity
	if sellFee {
		totalSell *= 1 - fee
	}
	if sellTax {
		totalSell *= 1 - tax
	}
	if !(totalBuy > 0) {
		return 0, false
	}
	margin := (totalSell - totalBuy) / totalBuy * 100
	if !finite(margin) {
		return 0, false
	}
	return margin, true
}
