package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vacation-api/internal/models"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
)

const calendarGenerationKey = "vacation:calendar:generation"

type calendarStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// CalendarCache memoises calendar windows. Entries are keyed by a generation
// counter, so bumping the counter retires every window at once and stale
// keys simply age out.
type CalendarCache struct {
	store   calendarStore
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCalendarCache constructs a CalendarCache. A disabled cache never hits.
func NewCalendarCache(store calendarStore, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CalendarCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarCache{store: store, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

func (c *CalendarCache) active() bool {
	return c != nil && c.enabled && c.store != nil
}

func (c *CalendarCache) key(ctx context.Context, start, end models.Date) (string, error) {
	gen, err := c.store.Counter(ctx, calendarGenerationKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("vacation:calendar:g%d:%s:%s", gen, start, end), nil
}

// Lookup returns the cached window and whether it was found, plus the key
// for the generation it read. Pass that key to Store so rows loaded before an
// Invalidate can never land under the newer generation. The key is empty
// when the cache is off or the generation could not be read. Store errors
// count as misses.
func (c *CalendarCache) Lookup(ctx context.Context, start, end models.Date) ([]models.VacationRequest, string, bool) {
	if !c.active() {
		return nil, "", false
	}
	began := time.Now()
	key, err := c.key(ctx, start, end)
	if err != nil {
		c.metrics.RecordCacheOperation(false, time.Since(began))
		c.logger.Warn("calendar cache generation read failed", zap.Error(err))
		return nil, "", false
	}
	var items []models.VacationRequest
	err = c.store.Get(ctx, key, &items)
	c.metrics.RecordCacheOperation(err == nil, time.Since(began))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("calendar cache read failed", zap.Error(err))
		}
		return nil, key, false
	}
	return items, key, true
}

// Store saves a window under the key returned by the Lookup that missed.
func (c *CalendarCache) Store(ctx context.Context, key string, items []models.VacationRequest) {
	if !c.active() || key == "" {
		return
	}
	began := time.Now()
	err := c.store.Set(ctx, key, items, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(began))
	if err != nil {
		c.logger.Warn("calendar cache write failed", zap.Error(err))
	}
}

// Invalidate retires every cached window.
func (c *CalendarCache) Invalidate(ctx context.Context) {
	if !c.active() {
		return
	}
	if _, err := c.store.Incr(ctx, calendarGenerationKey); err != nil {
		c.logger.Warn("calendar cache invalidation failed", zap.Error(err))
	}
}
