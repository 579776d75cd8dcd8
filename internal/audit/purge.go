package audit

import (
	"context"
	"log/slog"
	"time"
)

// PurgeConfig controls the retention job.
type PurgeConfig struct {
	Retention time.Duration // Entries older than this are deleted
	Interval  time.Duration // How often the job runs
}

// RunPurger deletes entries older than cfg.Retention, immediately and then
// every cfg.Interval, until ctx is cancelled. Failures are logged and the
// job keeps running.
func RunPurger(ctx context.Context, store Store, cfg PurgeConfig) {
	slog.Info("audit purger started",
		"retention", cfg.Retention,
		"interval", cfg.Interval,
	)

	// Run immediately on startup
	purgeOnce(ctx, store, cfg.Retention, time.Now)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("audit purger stopped")
			return
		case <-ticker.C:
			purgeOnce(ctx, store, cfg.Retention, time.Now)
		}
	}
}

// purgeOnce performs one purge cycle and returns the number of entries
// removed.
func purgeOnce(ctx context.Context, store Store, retention time.Duration, now func() time.Time) int64 {
	start := time.Now()
	cutoff := now().Add(-retention)

	purged, err := store.Purge(ctx, cutoff)
	if err != nil {
		slog.Error("audit purge failed", "error", err)
		return 0
	}

	slog.Info("purged audit entries",
		"entries_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return purged
}
