package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"eve-hubcompare/internal/catalog"
	"eve-hubcompare/internal/engine"
	"eve-hubcompare/internal/market"
	"eve-hubcompare/internal/refresh"
)

func formatISK(p *float64) string {
	if p == nil {
		return "-"
	}
	return humanize.CommafWithDigits(*p, 2)
}

func formatAge(age time.Duration, ok bool) string {
	if !ok {
		return "no cache"
	}
	return humanize.RelTime(time.Now().Add(-age), time.Now(), "old", "from now")
}

func formatTrend(t *market.Trend) string {
	if t == nil || t.PctDelta == nil {
		return ""
	}
	return fmt.Sprintf(" (%s %+.1f%%)", t.Direction, *t.PctDelta)
}

// printSnapshot writes best prices per commodity and hub in catalog order.
func printSnapshot(w io.Writer, snap market.Snapshot, cat *catalog.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "COMMODITY\tHUB\tBEST BUY\tBUY VOL\tBEST SELL\tSELL VOL\n")
	for _, c := range cat.Commodities {
		for _, h := range cat.Hubs {
			e, _ := snap.Entry(c.ID, h.Name)
			fmt.Fprintf(tw, "%s\t%s\t%s%s\t%s\t%s%s\t%s\n",
				c.Name, h.Name,
				formatISK(e.BestBuy), formatTrend(e.Trend.Buy), humanize.Comma(e.BuyVolume),
				formatISK(e.BestSell), formatTrend(e.Trend.Sell), humanize.Comma(e.SellVolume))
		}
	}
	return tw.Flush()
}

func printResult(w io.Writer, res refresh.Result) {
	var state string
	switch {
	case res.Downtime:
		state = "maintenance window, served cache"
	case res.Throttled:
		state = "throttled, served cache"
	case res.Busy:
		state = "another refresh is running, served cache"
	case res.Scheduled:
		state = "background job " + res.JobID + " scheduled"
	case res.Refreshed && !res.WriteOK:
		state = "rebuilt, but not written to the cache"
	case res.Refreshed:
		state = "rebuilt"
	case res.UsedCache:
		state = "cache is fresh"
	}
	fmt.Fprintf(w, "refresh: %s\n", state)
	if res.Partial {
		fmt.Fprintln(w, "warning: some hubs returned partial data")
	}
	if res.UsedStaleBackup {
		fmt.Fprintln(w, "warning: some entries were kept from the previous snapshot")
	}
}

func printOpportunities(w io.Writer, ops []engine.Opportunity) error {
	if len(ops) == 0 {
		fmt.Fprintln(w, "no profitable trades")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "COMMODITY\tBUY IN\tSELL IN\tQTY\tINVESTMENT\tPROFIT\tMARGIN\n")
	for _, op := range ops {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f%%\n",
			op.Name, op.BuyHub, op.SellHub,
			humanize.Comma(op.FilledQty),
			humanize.CommafWithDigits(op.Investment, 2),
			humanize.CommafWithDigits(op.Profit, 2),
			op.MarginPct)
	}
	return tw.Flush()
}

func printFees(w io.Writer, fees engine.FeeTable, cat *catalog.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "HUB\tBROKER FEE\tSALES TAX\n")
	for _, h := range cat.Hubs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Name, engine.Percent(fees.Brokerage[h.Name]), engine.Percent(fees.Tax[h.Name]))
	}
	return tw.Flush()
}

func printNoUndock(w io.Writer, rows []engine.NoUndockRow, cat *catalog.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "COMMODITY")
	for _, h := range cat.Hubs {
		fmt.Fprintf(tw, "\t%s", h.Name)
	}
	fmt.Fprintln(tw)
	for _, r := range rows {
		fmt.Fprint(tw, r.Name)
		for _, h := range cat.Hubs {
			m := r.Hubs[h.Name]
			switch {
			case !m.Valid:
				fmt.Fprint(tw, "\t-")
			case m.Outlier:
				fmt.Fprintf(tw, "\t%.2f%%!", m.MarginPct)
			default:
				fmt.Fprintf(tw, "\t%.2f%%", m.MarginPct)
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
