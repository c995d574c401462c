package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"eve-hubcompare/internal/engine"
)

var (
	simBuyMode   string
	simSellMode  string
	simMinMargin float64
	simQty       int64
	simHubs      string
	simFees      bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate hub-to-hub trades against the cached snapshot",
	Long: `Simulate buying each commodity in the cheapest hub and selling it in the
best-paying one, walking the cached order ladders with fees applied.

Modes: "sell" buys from sell orders (or sells into them); "buy" places a buy
order (or sells into buy orders). Defaults come from the trading section of
the config.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	f := simulateCmd.Flags()
	f.StringVar(&simBuyMode, "buy-mode", "", "how to acquire: sell (take sell orders) or buy (place buy order)")
	f.StringVar(&simSellMode, "sell-mode", "", "how to dispose: buy (fill buy orders) or sell (place sell order)")
	f.Float64Var(&simMinMargin, "min-margin", -1, "minimum margin percent")
	f.Int64Var(&simQty, "qty", -1, "quantity limit, 0 for none")
	f.StringVar(&simHubs, "hubs", "", "comma-separated hubs to consider (default all)")
	f.BoolVar(&simFees, "fees", false, "print the fee table first")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	t := a.cfg.Trading
	p := engine.SimParams{
		BuyMode:       engine.Mode(t.BuyMode),
		SellMode:      engine.Mode(t.SellMode),
		AllowedHubs:   t.AllowedHubs,
		Fees:          engine.FeeTables(t, a.catalog),
		MinMarginPct:  t.MinMarginPercent,
		QuantityLimit: t.QuantityLimit,
	}
	if simBuyMode != "" {
		p.BuyMode = engine.Mode(simBuyMode)
	}
	if simSellMode != "" {
		p.SellMode = engine.Mode(simSellMode)
	}
	for _, m := range []engine.Mode{p.BuyMode, p.SellMode} {
		if m != engine.ModeBuy && m != engine.ModeSell {
			return fmt.Errorf("invalid mode %q (want buy or sell)", m)
		}
	}
	if simMinMargin >= 0 {
		p.MinMarginPct = simMinMargin
	}
	if simQty >= 0 {
		p.QuantityLimit = simQty
	}
	if simHubs != "" {
		p.AllowedHubs = nil
		for _, name := range strings.Split(simHubs, ",") {
			h, ok := a.catalog.Hub(strings.TrimSpace(name))
			if !ok {
				return fmt.Errorf("unknown hub %q", name)
			}
			p.AllowedHubs = append(p.AllowedHubs, h.Name)
		}
	}

	out := cmd.OutOrStdout()
	if simFees {
		if err := printFees(out, p.Fees, a.catalog); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}

	snap, age, ok := a.coord.Read()
	fmt.Fprintf(out, "cache: %s, %s -> %s, min margin %.2f%%\n\n", formatAge(age, ok), p.BuyMode, p.SellMode, p.MinMarginPct)
	return printOpportunities(out, engine.ScanOpportunities(snap, a.catalog, p))
}
