package availability

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/availability/internal/platform/db"
)

type countingScheduleRepo struct {
	*mockScheduleRepo
	reads int
}

func (c *countingScheduleRepo) GetByDoctor(ctx context.Context, doctorID uuid.UUID) (*WeeklySchedule, error) {
	c.reads++
	return c.mockScheduleRepo.GetByDoctor(ctx, doctorID)
}

func newCachedRepo(t *testing.T) (*CachedScheduleRepository, *countingScheduleRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingScheduleRepo{mockScheduleRepo: newMockScheduleRepo()}
	return NewCachedScheduleRepository(inner, client, time.Minute, zerolog.Nop()), inner, mr
}

func seedSchedule(t *testing.T, repo ScheduleRepository, doctorID uuid.UUID) {
	t.Helper()
	_, err := repo.Update(context.Background(), doctorID, func(ws *WeeklySchedule) error {
		ws.Days[time.Tuesday] = DaySchedule{IsWorking: true, Windows: []WorkWindow{window("09:00", "11:00", 15, 5)}}
		return nil
	})
	require.NoError(t, err)
}

func TestCachedScheduleRepository_ReadThrough(t *testing.T) {
	repo, inner, mr := newCachedRepo(t)
	ctx := context.Background()
	doctorID := uuid.New()
	seedSchedule(t, inner, doctorID)

	first, err := repo.GetByDoctor(ctx, doctorID)
	require.NoError(t, err)
	second, err := repo.GetByDoctor(ctx, doctorID)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.reads, "second read should be served from redis")
	assert.Equal(t, first.VersionID, second.VersionID)
	assert.Equal(t, first.Days, second.Days)
	assert.True(t, mr.Exists(scheduleCacheKeyPrefix+"_:"+doctorID.String()))
	assert.Equal(t, time.Minute, mr.TTL(scheduleCacheKeyPrefix+"_:"+doctorID.String()))
}

func TestCachedScheduleRepository_UpdateWritesThrough(t *testing.T) {
	repo, inner, mr := newCachedRepo(t)
	ctx := context.Background()
	doctorID := uuid.New()
	seedSchedule(t, inner, doctorID)

	_, err := repo.GetByDoctor(ctx, doctorID)
	require.NoError(t, err)
	key := scheduleCacheKeyPrefix + "_:" + doctorID.String()
	require.True(t, mr.Exists(key))

	updated, err := repo.Update(ctx, doctorID, func(ws *WeeklySchedule) error {
		ws.Days[time.Tuesday] = DaySchedule{}
		return nil
	})
	require.NoError(t, err)
	require.True(t, mr.Exists(key), "update should leave the committed document cached")
	assert.Equal(t, time.Minute, mr.TTL(key))

	got, err := repo.GetByDoctor(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.reads)
	assert.Equal(t, updated.VersionID, got.VersionID)
	assert.False(t, got.Days[time.Tuesday].IsWorking)
}

func TestCachedScheduleRepository_LateReadThroughCannotRestoreStale(t *testing.T) {
	repo, inner, _ := newCachedRepo(t)
	ctx := context.Background()
	doctorID := uuid.New()
	seedSchedule(t, inner, doctorID)

	// A reader loads the schedule from the database but has not cached it yet.
	stale, err := inner.GetByDoctor(ctx, doctorID)
	require.NoError(t, err)

	updated, err := repo.Update(ctx, doctorID, func(ws *WeeklySchedule) error {
		ws.Days[time.Tuesday] = DaySchedule{}
		return nil
	})
	require.NoError(t, err)
	require.Greater(t, updated.VersionID, stale.VersionID)

	// The reader finishes after the update committed.
	repo.fill(ctx, repo.key(ctx, doctorID), stale)

	got, err := repo.GetByDoctor(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, updated.VersionID, got.VersionID)
	assert.False(t, got.Days[time.Tuesday].IsWorking)
}

func TestCachedScheduleRepository_FillAfterInvalidate(t *testing.T) {
	repo, inner, _ := newCachedRepo(t)
	ctx := context.Background()
	doctorID := uuid.New()
	seedSchedule(t, inner, doctorID)

	stale, err := inner.GetByDoctor(ctx, doctorID)
	require.NoError(t, err)
	key := repo.key(ctx, doctorID)

	// A stale fill that lands between the pre-write delete and the commit is
	// overwritten once the update stores its result.
	_, err = repo.Update(ctx, doctorID, func(ws *WeeklySchedule) error {
		repo.fill(ctx, key, stale)
		ws.Days[time.Tuesday] = DaySchedule{}
		return nil
	})
	require.NoError(t, err)

	got, err := repo.GetByDoctor(ctx, doctorID)
	require.NoError(t, err)
	assert.Greater(t, got.VersionID, stale.VersionID)
	assert.False(t, got.Days[time.Tuesday].IsWorking)
}

func TestCachedScheduleRepository_NotFoundIsNotCached(t *testing.T) {
	repo, _, mr := newCachedRepo(t)
	doctorID := uuid.New()

	_, err := repo.GetByDoctor(context.Background(), doctorID)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
	assert.Empty(t, mr.Keys())
}

func TestCachedScheduleRepository_TenantScopedKeys(t *testing.T) {
	repo, inner, mr := newCachedRepo(t)
	doctorID := uuid.New()
	seedSchedule(t, inner, doctorID)

	ctx := db.ContextWithTenant(context.Background(), "clinic_a")
	_, err := repo.GetByDoctor(ctx, doctorID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(scheduleCacheKeyPrefix+"clinic_a:"+doctorID.String()))
}

func TestCachedScheduleRepository_RedisDown(t *testing.T) {
	repo, inner, mr := newCachedRepo(t)
	ctx := context.Background()
	doctorID := uuid.New()
	seedSchedule(t, inner, doctorID)

	mr.Close()

	ws, err := repo.GetByDoctor(ctx, doctorID)
	require.NoError(t, err, "redis failures must fall back to the inner repository")
	assert.True(t, ws.Days[time.Tuesday].IsWorking)

	_, err = repo.Update(ctx, doctorID, func(ws *WeeklySchedule) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, inner.reads)
}

func TestCachedScheduleRepository_DiscardsCorruptEntry(t *testing.T) {
	repo, inner, mr := newCachedRepo(t)
	doctorID := uuid.New()
	seedSchedule(t, inner, doctorID)

	require.NoError(t, mr.Set(scheduleCacheKeyPrefix+"_:"+doctorID.String(), "{not json"))

	ws, err := repo.GetByDoctor(context.Background(), doctorID)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.reads)
	assert.Equal(t, 1, ws.VersionID)
}
