package refresh

import (
	"context"
	"time"

	"eve-hubcompare/internal/market"
)

// Reader is the read side of the coordinator.
type Reader interface {
	Read() (market.Snapshot, time.Duration, bool)
}

// PollOptions tunes Poll.
type PollOptions struct {
	Interval time.Duration // default 5s
	Timeout  time.Duration // default 90s
	MaxAge   time.Duration // default 120s
}

// Poll waits for a background refresh to land. It re-reads the cache every
// Interval until the cache is younger than MaxAge or younger than
// baselineAge and holds real prices. After Timeout it gives up and returns
// the last snapshot read with false.
func Poll(ctx context.Context, r Reader, baselineAge time.Duration, opts PollOptions) (market.Snapshot, bool) {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 120 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var last market.Snapshot
	for {
		select {
		case <-ctx.Done():
			return last, false
		case <-ticker.C:
		}
		snap, age, ok := r.Read()
		last = snap
		if ok && (age <= opts.MaxAge || age < baselineAge) && snap.Ready() {
			return snap, true
		}
	}
}
