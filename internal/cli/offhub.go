package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"eve-hubcompare/internal/engine"
)

var (
	offHubBuy, offHubSell                      float64
	offHubFee, offHubTax                       float64
	offHubBuyFee, offHubSellFee, offHubSellTax bool
)

var offHubCmd = &cobra.Command{
	Use:   "offhub",
	Short: "Margin of a trade at prices you enter, outside the tracked hubs",
	Long: `Compute the margin of buying at --buy and selling at --sell, priced over a
lot of 100,000 units. --fee and --tax are percentages; --buy-fee, --sell-fee
and --sell-tax choose which legs pay them. No cache or network is used.`,
	RunE: runOffHub,
}

func init() {
	rootCmd.AddCommand(offHubCmd)
	f := offHubCmd.Flags()
	f.Float64Var(&offHubBuy, "buy", 0, "buy price per unit")
	f.Float64Var(&offHubSell, "sell", 0, "sell price per unit")
	f.Float64Var(&offHubFee, "fee", 0, "broker fee percent")
	f.Float64Var(&offHubTax, "tax", 0, "sales tax percent")
	f.BoolVar(&offHubBuyFee, "buy-fee", false, "pay the broker fee when buying")
	f.BoolVar(&offHubSellFee, "sell-fee", false, "pay the broker fee when selling")
	f.BoolVar(&offHubSellTax, "sell-tax", false, "pay sales tax when selling")
	offHubCmd.MarkFlagRequired("buy")
	offHubCmd.MarkFlagRequired("sell")
}

func runOffHub(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	m, ok := engine.OffHubMargin(offHubBuy, offHubSell, offHubFee/100, offHubTax/100,
		offHubBuyFee, offHubSellFee, offHubSellTax)
	if !ok {
		fmt.Fprintln(out, "margin: N/A")
		return nil
	}
	fmt.Fprintf(out, "margin: %.2f%% over %s units\n", m, humanize.Comma(engine.OffHubQuantity))
	return nil
}
