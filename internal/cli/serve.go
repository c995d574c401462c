package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"eve-hubcompare/internal/api"
	"eve-hubcompare/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the snapshot, refresh, trade and no-undock endpoints under /api and
Prometheus metrics under /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Banner(Version)
	logger.Section("Startup")
	logger.Stats("commodities", len(a.catalog.Commodities))
	logger.Stats("hubs", len(a.catalog.Hubs))
	logger.Stats("cached_locations", a.db.LocationCount())
	if n, err := a.db.PruneHistory(); err != nil {
		logger.Warn("DB", fmt.Sprintf("prune history: %v", err))
	} else if n > 0 {
		logger.Info("DB", fmt.Sprintf("Pruned %d idle history series", n))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if a.client.HealthCheck(hctx) {
			logger.Success("ESI", "Upstream reachable")
		} else {
			logger.Warn("ESI", "Upstream unreachable, serving cached data only")
		}
	}()

	if _, age, ok := a.coord.Read(); ok {
		logger.Info("CACHE", fmt.Sprintf("Snapshot on disk, age %s", age.Round(time.Second)))
	} else {
		logger.Info("CACHE", "No snapshot on disk yet")
	}

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewServer(a.cfg, a.catalog, a.coord).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("API", fmt.Sprintf("Listening on http://%s", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("API", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
