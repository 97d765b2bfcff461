package availability

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ehr/availability/internal/platform/db"
)

const scheduleCacheKeyPrefix = "availability:schedule:"

// CachedScheduleRepository keeps weekly schedule documents in Redis in front
// of another ScheduleRepository. Only the rule document is cached; resolved
// slots depend on live bookings and are always computed. Redis failures
// degrade to the inner repository.
type CachedScheduleRepository struct {
	inner  ScheduleRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedScheduleRepository(inner ScheduleRepository, client redis.UniversalClient, ttl time.Duration, logger zerolog.Logger) *CachedScheduleRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedScheduleRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

// key is namespaced by tenant because doctor IDs are only unique per schema.
func (c *CachedScheduleRepository) key(ctx context.Context, doctorID uuid.UUID) string {
	tenant := db.TenantFromContext(ctx)
	if tenant == "" {
		tenant = "_"
	}
	return scheduleCacheKeyPrefix + tenant + ":" + doctorID.String()
}

func (c *CachedScheduleRepository) GetByDoctor(ctx context.Context, doctorID uuid.UUID) (*WeeklySchedule, error) {
	key := c.key(ctx, doctorID)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var ws WeeklySchedule
		if jerr := json.Unmarshal(data, &ws); jerr == nil {
			return &ws, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable cached schedule")
		c.client.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache read failed")
	}

	ws, err := c.inner.GetByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, ws)
	return ws, nil
}

func (c *CachedScheduleRepository) Update(ctx context.Context, doctorID uuid.UUID, fn func(*WeeklySchedule) error) (*WeeklySchedule, error) {
	key := c.key(ctx, doctorID)
	// Drop the entry before writing so a failed write never leaves a stale copy.
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache invalidation failed")
	}
	ws, err := c.inner.Update(ctx, doctorID, fn)
	if err != nil {
		return nil, err
	}
	// Overwrite with the committed document. A concurrent read-through that
	// loaded the previous version only fills an empty key, so it cannot win.
	if !c.store(ctx, key, ws) {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache invalidation failed")
		}
	}
	return ws, nil
}

// store unconditionally writes ws and reports whether the write succeeded.
func (c *CachedScheduleRepository) store(ctx context.Context, key string, ws *WeeklySchedule) bool {
	data, err := json.Marshal(ws)
	if err != nil {
		return false
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache write failed")
		return false
	}
	return true
}

// fill caches a document read from the inner repository, leaving any entry
// already present (written by a newer Update) untouched.
func (c *CachedScheduleRepository) fill(ctx context.Context, key string, ws *WeeklySchedule) {
	data, err := json.Marshal(ws)
	if err != nil {
		return
	}
	if err := c.client.SetNX(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache write failed")
	}
}
