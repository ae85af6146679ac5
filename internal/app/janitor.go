package app

import (
	"context"
	"time"
)

// JanitorOptions configures RunJanitor.
type JanitorOptions struct {
	// Interval between sweeps. Zero selects one minute.
	Interval time.Duration
	// SessionIdle removes sessions not seen for this long. Zero keeps them.
	SessionIdle time.Duration
	// Retention deletes stored announcements older than this. Zero keeps them.
	Retention time.Duration
}

// RunJanitor periodically prunes idle sessions and expired history until ctx is done.
func (a *App) RunJanitor(ctx context.Context, opts JanitorOptions) {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(a.now(), opts)
		}
	}
}

func (a *App) sweep(now time.Time, opts JanitorOptions) {
	if opts.SessionIdle > 0 {
		if n := a.sessions.Prune(now, opts.SessionIdle); n > 0 {
			a.log.Debug("pruned idle sessions", "count", n)
		}
	}
	if opts.Retention > 0 && a.store != nil {
		n, err := a.store.Announcements().DeleteBefore(now.Add(-opts.Retention))
		if err != nil {
			a.log.Warn("failed to expire history", "error", err)
		} else if n > 0 {
			a.log.Debug("expired announcements", "count", n)
		}
	}
}
