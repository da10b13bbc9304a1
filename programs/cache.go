package programs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/makbot/core/logger"
)

// Cache wraps a Loader with a TTL so the sheet is not hit on every delivery.
// On refresh failure it serves the last good schedule; when nothing was ever
// loaded it degrades to an empty schedule.
type Cache struct {
	source Loader
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	schedule Schedule
	loadedAt time.Time
	primed   bool
}

// NewCache builds a cache over the source. The now func is injectable for
// tests and defaults to time.Now.
func NewCache(source Loader, ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{source: source, ttl: ttl, now: now}
}

// Load returns the cached schedule, refreshing it when the TTL has expired.
func (c *Cache) Load(ctx context.Context) (Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.primed && c.now().Sub(c.loadedAt) < c.ttl {
		logger.Debug(ctx, "programs", "schedule.cache", slog.String("cache", "hit"))
		return c.schedule, nil
	}

	fresh, err := c.source.Load(ctx)
	if err != nil {
		logger.Warn(ctx, "programs", "schedule.load_failed",
			slog.String("err", err.Error()),
			slog.Bool("stale_served", c.primed),
		)
		if c.primed {
			return c.schedule, nil
		}
		return NewSchedule(nil), nil
	}

	c.schedule = fresh
	c.loadedAt = c.now()
	c.primed = true
	logger.Debug(ctx, "programs", "schedule.cache", slog.String("cache", "refresh"))
	return c.schedule, nil
}
