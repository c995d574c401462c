package market

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"eve-hubcompare/internal/catalog"
	"eve-hubcompare/internal/esi"
	"eve-hubcompare/internal/logger"
	"eve-hubcompare/internal/metrics"
)

// PageSource fetches single order pages and reports how many to walk.
type PageSource interface {
	PageLimit(regionID, typeID int32) int
	FetchPage(ctx context.Context, regionID, typeID int32, page int) ([]esi.RawOrder, error)
}

// Resolver maps an order location to a solar system.
type Resolver interface {
	Resolve(ctx context.Context, locationID int64, hub catalog.Hub) (int32, bool)
}

// HistorySource returns daily price history for a type in a region.
type HistorySource interface {
	History(ctx context.Context, regionID, typeID int32) ([]esi.HistoryEntry, error)
}

// Options tunes the aggregator.
type Options struct {
	Depth   int // ladder truncation depth
	Workers int // concurrent (commodity, hub) units
}

// Report summarises one Build.
type Report struct {
	Partial         bool          `json:"partial"`
	UsedStaleBackup bool          `json:"used_stale_backup"`
	Fallbacks       []string      `json:"fallbacks,omitempty"` // "typeID/hub"
	PageErrors      int           `json:"page_errors"`
	OrdersKept      int           `json:"orders_kept"`
	OrdersSkipped   int           `json:"orders_skipped"`
	Duration        time.Duration `json:"duration"`
}

// Aggregator builds a full Snapshot from upstream order pages.
type Aggregator struct {
	catalog  *catalog.Catalog
	pages    PageSource
	resolver Resolver
	history  HistorySource // nil disables trends
	opts     Options
}

// NewAggregator creates an aggregator over the given sources.
func NewAggregator(cat *catalog.Catalog, pages PageSource, resolver Resolver, history HistorySource, opts Options) *Aggregator {
	if opts.Depth <= 0 {
		opts.Depth = DefaultDepth
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Aggregator{catalog: cat, pages: pages, resolver: resolver, history: history, opts: opts}
}

type unit struct {
	commodity catalog.Commodity
	hub       catalog.Hub
}

type unitResult struct {
	entry      Entry
	pageErrors int
	kept       int
	skipped    int
}

// Build rebuilds every (commodity, hub) entry. An entry that ends with no
// price on either side is copied from prev when prev has it. Build never
// fails; upstream trouble shows up in the Report.
func (a *Aggregator) Build(ctx context.Context, prev Snapshot) (Snapshot, Report) {
	start := time.Now()
	snap := Empty(a.catalog)
	var rep Report
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for _, c := range a.catalog.Commodities {
		for _, h := range a.catalog.Hubs {
			u := unit{commodity: c, hub: h}
			g.Go(func() error {
				res := a.buildUnit(gctx, u)
				mu.Lock()
				defer mu.Unlock()
				rep.PageErrors += res.pageErrors
				rep.OrdersKept += res.kept
				rep.OrdersSkipped += res.skipped
				if res.pageErrors > 0 {
					rep.Partial = true
				}
				entry := res.entry
				if !entry.HasPrice() {
					if old, ok := prev.Entry(u.commodity.ID, u.hub.Name); ok && old.HasPrice() {
						entry = old
						rep.UsedStaleBackup = true
						rep.Partial = true
						rep.Fallbacks = append(rep.Fallbacks, fmt.Sprintf("%d/%s", u.commodity.ID, u.hub.Name))
						metrics.StaleFallbacks.Inc()
					}
				}
				snap[u.commodity.ID].Hubs[u.hub.Name] = entry
				return nil
			})
		}
	}
	_ = g.Wait()

	sort.Strings(rep.Fallbacks)
	rep.Duration = time.Since(start)
	logger.Info("MARKET", fmt.Sprintf("Built snapshot: %d orders kept, %d skipped, %d page errors, %d fallbacks in %s",
		rep.OrdersKept, rep.OrdersSkipped, rep.PageErrors, len(rep.Fallbacks), rep.Duration.Round(time.Millisecond)))
	return snap, rep
}

// buildUnit walks the pages of one (commodity, hub). A failing page ends the
// walk; orders from earlier pages are kept.
func (a *Aggregator) buildUnit(ctx context.Context, u unit) unitResult {
	var res unitResult
	var buys, sells []Level

	for page := 1; page <= a.pages.PageLimit(u.hub.RegionID, u.commodity.ID); page++ {
		orders, err := a.pages.FetchPage(ctx, u.hub.RegionID, u.commodity.ID, page)
		if err != nil {
			res.pageErrors++
			logger.Warn("MARKET", fmt.Sprintf("%s/%s page %d: %v", u.hub.Name, u.commodity.Name, page, err))
			break
		}
		for _, o := range orders {
			if !o.Complete() || !ValidOrder(*o.Price, *o.VolumeRemain) {
				res.skipped++
				continue
			}
			sys, ok := a.resolver.Resolve(ctx, *o.LocationID, u.hub)
			if !ok || !u.hub.HasSystem(sys) {
				continue
			}
			res.kept++
			l := Level{Price: *o.Price, Volume: *o.VolumeRemain}
			if *o.IsBuyOrder {
				buys = append(buys, l)
			} else {
				sells = append(sells, l)
			}
		}
	}

	res.entry = BuildEntry(buys, sells, a.opts.Depth)
	if res.entry.HasPrice() && a.history != nil {
		hist, err := a.history.History(ctx, u.hub.RegionID, u.commodity.ID)
		if err != nil {
			logger.Debug("MARKET", fmt.Sprintf("%s/%s history: %v", u.hub.Name, u.commodity.Name, err))
		} else {
			res.entry.Trend = Trends{
				Buy:  ComputeTrend(hist, "lowest"),
				Sell: ComputeTrend(hist, "highest"),
			}
		}
	}
	return res
}
