package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"eve-hubcompare/internal/engine"
)

var (
	snapshotJSON     bool
	snapshotNoUndock bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Show the cached snapshot without touching the network",
	RunE:  runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "print the snapshot as JSON")
	snapshotCmd.Flags().BoolVar(&snapshotNoUndock, "no-undock", false, "print per-hub no-undock margins instead of prices")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	snap, age, ok := a.coord.Read()

	if snapshotJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintf(out, "cache: %s\n\n", formatAge(age, ok))
	if snapshotNoUndock {
		fees := engine.FeeTables(a.cfg.Trading, a.catalog)
		return printNoUndock(out, engine.NoUndockTable(snap, a.catalog, fees), a.catalog)
	}
	return printSnapshot(out, snap, a.catalog)
}
