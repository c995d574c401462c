package cli

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"eve-hubcompare/internal/logger"
	"eve-hubcompare/internal/refresh"
)

var (
	refreshForce      bool
	refreshBackground bool
	refreshWait       bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the snapshot from ESI if it is stale",
	Long: `Rebuild the market snapshot when the cache is older than six hours or
--force is given. Refreshes are skipped during the daily maintenance window
and while another process holds the refresh lease.

With --background the rebuild runs as a detached job; --wait polls the cache
until the new snapshot lands.`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().BoolVarP(&refreshForce, "force", "f", false, "rebuild even if the cache is fresh")
	refreshCmd.Flags().BoolVar(&refreshBackground, "background", false, "run the rebuild as a background job")
	refreshCmd.Flags().BoolVar(&refreshWait, "wait", false, "with --background, poll until the new snapshot is written")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	logger.Section("Refresh")

	if !refreshBackground {
		res := a.coord.Refresh(ctx, "", refreshForce)
		printResult(out, res)
		if res.Refreshed {
			logger.Stats("write_ok", res.WriteOK)
		}
		if res.Refreshed && !res.WriteOK {
			return fmt.Errorf("snapshot was rebuilt but not written to the cache")
		}
		return printSnapshot(out, res.Snapshot, a.catalog)
	}

	_, baseline, ok := a.coord.Read()
	if !ok {
		baseline = time.Duration(math.MaxInt64)
	}
	res := a.coord.RefreshInBackground(ctx, "", refreshForce)
	printResult(out, res)
	if !res.Scheduled || !refreshWait {
		return nil
	}

	fmt.Fprintln(os.Stderr, "waiting for the new snapshot...")
	snap, landed := refresh.Poll(ctx, a.coord, baseline, refresh.PollOptions{
		Interval: a.cfg.Refresh.PollInterval,
		Timeout:  a.cfg.Refresh.PollTimeout,
	})
	if !landed {
		fmt.Fprintln(os.Stderr, "timed out, showing the last cached snapshot")
	}
	return printSnapshot(out, snap, a.catalog)
}
