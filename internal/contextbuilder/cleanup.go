package contextbuilder

import (
	"context"
	"time"
)

// RunCacheCleanup purges b's token/prompt caches on a timer, re-reading the
// interval from intervalFn on every cycle so a live config.Tunables change
// (PUT /discussions/performance/config) takes effect without a restart.
// Intended for config.Tunables.Performance.CacheCleanupInterval and
// MemoryCleanupInterval (spec §4.4: "cache is purged periodically"); callers
// typically start one goroutine per interval, both driving the same Purge.
func RunCacheCleanup(ctx context.Context, intervalFn func() time.Duration, b *Builder) {
	for {
		interval := intervalFn()
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			b.Purge()
		}
	}
}
