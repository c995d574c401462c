// Package refresh decides when the market snapshot is rebuilt and keeps
// concurrent callers from stampeding the upstream API.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"eve-hubcompare/internal/catalog"
	"eve-hubcompare/internal/logger"
	"eve-hubcompare/internal/market"
	"eve-hubcompare/internal/metrics"
)

const (
	globalLease  = "refresh"
	clientPrefix = "client:"
)

// Builder rebuilds a snapshot from upstream data.
type Builder interface {
	Build(ctx context.Context, prev market.Snapshot) (market.Snapshot, market.Report)
}

// SnapshotStore persists snapshots.
type SnapshotStore interface {
	Load(freshOnly bool) (market.Snapshot, error)
	Save(snap market.Snapshot) error
	Age() (time.Duration, bool)
	Fresh() bool
	Clear() error
}

// LeaseStore provides expiring exclusive leases.
type LeaseStore interface {
	AcquireLease(key, owner string, ttl time.Duration, now time.Time) (bool, error)
	ReleaseLease(key, owner string) error
	LeaseHolder(key string, now time.Time) (string, time.Time, bool)
}

// Clearer is any additional persisted state wiped by Clear.
type Clearer interface {
	Clear() error
}

// ClearFunc adapts a function to Clearer.
type ClearFunc func() error

// Clear calls f.
func (f ClearFunc) Clear() error { return f() }

// Options tunes the coordinator.
type Options struct {
	LeaseTTL          time.Duration
	ClientInterval    time.Duration
	BackgroundTimeout time.Duration
	MaintenanceStart  time.Duration // offset from 00:00 UTC
	MaintenanceEnd    time.Duration
}

// Result is returned by every refresh request.
type Result struct {
	Refreshed       bool            `json:"refreshed"`
	UsedCache       bool            `json:"used_cache"`
	Busy            bool            `json:"busy"`
	Partial         bool            `json:"partial"`
	UsedStaleBackup bool            `json:"used_stale_backup"`
	CacheAgeSeconds *float64        `json:"cache_age_seconds"`
	WriteOK         bool            `json:"write_ok"`
	Scheduled       bool            `json:"scheduled"`
	Downtime        bool            `json:"downtime"`
	Throttled       bool            `json:"throttled"`
	JobID           string          `json:"job_id,omitempty"`
	Snapshot        market.Snapshot `json:"snapshot"`
}

// Job states.
const (
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// Job is a detached one-shot background refresh.
type Job struct {
	ID       string     `json:"id"`
	State    string     `json:"state"`
	ClientID string     `json:"client_id,omitempty"`
	Started  time.Time  `json:"started"`
	Finished *time.Time `json:"finished,omitempty"`
	WriteOK  bool       `json:"write_ok"`
}

// Status describes the cache and any refresh in progress.
type Status struct {
	CacheAgeSeconds *float64       `json:"cache_age_seconds"`
	Fresh           bool           `json:"fresh"`
	Ready           bool           `json:"ready"`
	Refreshing      bool           `json:"refreshing"`
	LeaseExpires    *time.Time     `json:"lease_expires,omitempty"`
	Maintenance     bool           `json:"maintenance"`
	Job             *Job           `json:"job,omitempty"`
	LastReport      *market.Report `json:"last_report,omitempty"`
}

// Coordinator runs the refresh state machine.
type Coordinator struct {
	catalog  *catalog.Catalog
	builder  Builder
	store    SnapshotStore
	leases   LeaseStore
	clearers []Clearer
	opts     Options

	now func() time.Time

	mu         sync.Mutex
	job        *Job
	lastReport *market.Report
	wg         sync.WaitGroup
}

// NewCoordinator wires the coordinator. clearers are wiped together with the
// snapshot store by Clear.
func NewCoordinator(cat *catalog.Catalog, builder Builder, store SnapshotStore, leases LeaseStore, opts Options, clearers ...Clearer) *Coordinator {
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 5 * time.Minute
	}
	if opts.ClientInterval <= 0 {
		opts.ClientInterval = 20 * time.Second
	}
	if opts.BackgroundTimeout <= 0 {
		opts.BackgroundTimeout = 4 * time.Minute
	}
	return &Coordinator{
		catalog:  cat,
		builder:  builder,
		store:    store,
		leases:   leases,
		clearers: clearers,
		opts:     opts,
		now:      time.Now,
	}
}

// InMaintenance reports whether t falls inside the daily UTC blackout window.
func (c *Coordinator) InMaintenance(t time.Time) bool {
	start, end := c.opts.MaintenanceStart, c.opts.MaintenanceEnd
	if start == end {
		return false
	}
	u := t.UTC()
	offset := time.Duration(u.Hour())*time.Hour + time.Duration(u.Minute())*time.Minute + time.Duration(u.Second())*time.Second
	if start < end {
		return offset >= start && offset < end
	}
	// Window wraps past midnight.
	return offset >= start || offset < end
}

// Read returns the current cache merged regardless of age, with every
// catalog pair present, plus the cache age. It never touches the network.
func (c *Coordinator) Read() (market.Snapshot, time.Duration, bool) {
	snap, err := c.store.Load(false)
	if err != nil {
		logger.Warn("REFRESH", fmt.Sprintf("load cache: %v", err))
	}
	age, ok := c.store.Age()
	return snap.Complete(c.catalog), age, ok
}

func (c *Coordinator) cached(res Result) Result {
	snap, age, ok := c.Read()
	res.UsedCache = true
	res.Snapshot = snap
	res.CacheAgeSeconds = ageSeconds(age, ok)
	return res
}

func ageSeconds(age time.Duration, ok bool) *float64 {
	if !ok {
		return nil
	}
	s := age.Seconds()
	return &s
}

// gate runs the checks shared by both refresh variants. It returns a final
// result and false when no refresh should start.
func (c *Coordinator) gate(clientID string, force bool) (Result, bool) {
	now := c.now()
	if c.InMaintenance(now) {
		metrics.Refreshes.WithLabelValues("downtime").Inc()
		return c.cached(Result{Downtime: true}), false
	}
	if !force && c.store.Fresh() {
		metrics.Refreshes.WithLabelValues("fresh").Inc()
		return c.cached(Result{}), false
	}
	if clientID != "" {
		ok, err := c.leases.AcquireLease(clientPrefix+clientID, clientID, c.opts.ClientInterval, now)
		if err != nil {
			logger.Warn("REFRESH", fmt.Sprintf("client throttle: %v", err))
		} else if !ok {
			metrics.Refreshes.WithLabelValues("throttled").Inc()
			return c.cached(Result{Throttled: true}), false
		}
	}
	return Result{}, true
}

func (c *Coordinator) acquire() (string, bool) {
	owner := uuid.NewString()
	ok, err := c.leases.AcquireLease(globalLease, owner, c.opts.LeaseTTL, c.now())
	if err != nil {
		logger.Warn("REFRESH", fmt.Sprintf("acquire lease: %v", err))
		return "", false
	}
	return owner, ok
}

// Refresh rebuilds the snapshot synchronously when it is stale or force is
// set. Contention, throttling and the maintenance window all return the
// current cache instead.
func (c *Coordinator) Refresh(ctx context.Context, clientID string, force bool) Result {
	if res, ok := c.gate(clientID, force); !ok {
		return res
	}
	owner, ok := c.acquire()
	if !ok {
		metrics.Refreshes.WithLabelValues("busy").Inc()
		return c.cached(Result{Busy: true})
	}
	bctx, cancel := c.detach(ctx)
	defer cancel()
	return c.run(bctx, owner)
}

// detach bounds a rebuild by BackgroundTimeout instead of the caller's
// lifetime, so a dropped client does not abort it half way.
func (c *Coordinator) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.opts.BackgroundTimeout)
}

// RefreshInBackground returns the current cache immediately and starts a
// detached rebuild. While a job runs, further requests report it instead of
// starting another.
func (c *Coordinator) RefreshInBackground(ctx context.Context, clientID string, force bool) Result {
	c.mu.Lock()
	if c.job != nil && c.job.State == JobRunning {
		id := c.job.ID
		c.mu.Unlock()
		metrics.Refreshes.WithLabelValues("scheduled").Inc()
		return c.cached(Result{Scheduled: true, JobID: id})
	}
	c.mu.Unlock()

	if res, ok := c.gate(clientID, force); !ok {
		return res
	}
	owner, ok := c.acquire()
	if !ok {
		metrics.Refreshes.WithLabelValues("busy").Inc()
		return c.cached(Result{Busy: true})
	}

	job := &Job{ID: ulid.Make().String(), State: JobRunning, ClientID: clientID, Started: c.now()}
	c.mu.Lock()
	c.job = job
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		bctx, cancel := c.detach(ctx)
		defer cancel()
		res := c.run(bctx, owner)

		finished := c.now()
		c.mu.Lock()
		job.Finished = &finished
		job.WriteOK = res.WriteOK
		job.State = JobDone
		if !res.WriteOK {
			job.State = JobFailed
		}
		c.mu.Unlock()
		logger.Info("REFRESH", fmt.Sprintf("Background job %s %s", job.ID, job.State))
	}()

	metrics.Refreshes.WithLabelValues("scheduled").Inc()
	return c.cached(Result{Scheduled: true, JobID: job.ID})
}

// run performs one rebuild while holding the global lease.
func (c *Coordinator) run(ctx context.Context, owner string) Result {
	defer func() {
		if err := c.leases.ReleaseLease(globalLease, owner); err != nil {
			logger.Warn("REFRESH", fmt.Sprintf("release lease: %v", err))
		}
	}()

	start := time.Now()
	prev, err := c.store.Load(false)
	if err != nil {
		logger.Warn("REFRESH", fmt.Sprintf("load previous snapshot: %v", err))
	}
	snap, rep := c.builder.Build(ctx, prev)

	res := Result{
		Refreshed:       true,
		Partial:         rep.Partial,
		UsedStaleBackup: rep.UsedStaleBackup,
		Snapshot:        snap,
	}
	if reason := c.unsaveable(ctx, snap, rep); reason != "" {
		logger.Warn("REFRESH", "Not saving snapshot: "+reason)
		metrics.Refreshes.WithLabelValues("discarded").Inc()
	} else if err := c.store.Save(snap); err != nil {
		logger.Error("REFRESH", fmt.Sprintf("save snapshot: %v", err))
		metrics.Refreshes.WithLabelValues("write_failed").Inc()
	} else {
		res.WriteOK = true
		metrics.Refreshes.WithLabelValues("refreshed").Inc()
	}
	age, ok := c.store.Age()
	res.CacheAgeSeconds = ageSeconds(age, ok)
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	c.lastReport = &rep
	c.mu.Unlock()
	logger.Success("REFRESH", fmt.Sprintf("Refreshed in %s (partial=%v stale_backup=%v write_ok=%v)",
		time.Since(start).Round(time.Millisecond), res.Partial, res.UsedStaleBackup, res.WriteOK))
	return res
}

// unsaveable names why a built snapshot must not replace the cache: saving
// it would mark data that carries nothing new as fresh for a full TTL.
func (c *Coordinator) unsaveable(ctx context.Context, snap market.Snapshot, rep market.Report) string {
	switch {
	case ctx.Err() != nil:
		return fmt.Sprintf("build interrupted: %v", ctx.Err())
	case !snap.Ready():
		return "no prices"
	case len(rep.Fallbacks) >= len(c.catalog.Commodities)*len(c.catalog.Hubs):
		return "every entry came from the previous snapshot"
	}
	return ""
}

// Status reports cache age, lease and job state without touching the network.
func (c *Coordinator) Status() Status {
	now := c.now()
	snap, age, ok := c.Read()
	st := Status{
		CacheAgeSeconds: ageSeconds(age, ok),
		Fresh:           c.store.Fresh(),
		Ready:           snap.Ready(),
		Maintenance:     c.InMaintenance(now),
	}
	if _, exp, live := c.leases.LeaseHolder(globalLease, now); live {
		st.Refreshing = true
		st.LeaseExpires = &exp
	}
	c.mu.Lock()
	if c.job != nil {
		j := *c.job
		st.Job = &j
	}
	st.LastReport = c.lastReport
	c.mu.Unlock()
	return st
}

// Clear wipes the snapshot and every registered piece of persisted state.
// The first error is returned after all clearers have run.
func (c *Coordinator) Clear() error {
	var first error
	if err := c.store.Clear(); err != nil {
		first = err
	}
	for _, cl := range c.clearers {
		if err := cl.Clear(); err != nil && first == nil {
			first = err
		}
	}
	c.mu.Lock()
	c.lastReport = nil
	c.mu.Unlock()
	if first != nil {
		return fmt.Errorf("clear cache: %w", first)
	}
	logger.Info("REFRESH", "Cache cleared")
	return nil
}

// Wait blocks until any background job has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
