package repository

import (
	"context"
	"testing"
	"time"

	"breakbot/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisStateRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStateRepository(client), mr
}

func TestRedisStateRepository(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	got, err := repo.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got, "no state stored yet")

	state := &models.UserState{
		UserID: 1,
		Step:   "cancel_pick",
		Data:   map[string]interface{}{"booking_id": int64(42)},
	}
	require.NoError(t, repo.SetState(ctx, state))

	got, err = repo.GetState(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cancel_pick", got.Step)
	// JSON round-trip turns numbers into float64; GetInt64 covers that.
	assert.Equal(t, int64(42), got.GetInt64("booking_id"))

	require.NoError(t, repo.ClearState(ctx, 1))
	got, err = repo.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStateRepository_StateExpires(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 5, Step: "x"}))
	mr.FastForward(stateTTL + time.Second)

	got, err := repo.GetState(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStateRepository_RateLimit(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := repo.CheckRateLimit(ctx, 9, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := repo.CheckRateLimit(ctx, 9, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "fourth call in the window is over the limit")

	// A different user has an independent budget.
	ok, err = repo.CheckRateLimit(ctx, 10, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// After the window passes the budget resets.
	mr.FastForward(2 * time.Minute)
	ok, err = repo.CheckRateLimit(ctx, 9, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStateRepository(t *testing.T) {
	repo := NewMemoryStateRepository()
	ctx := context.Background()

	got, err := repo.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 1, Step: "cancel_pick"}))
	got, err = repo.GetState(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cancel_pick", got.Step)

	require.NoError(t, repo.ClearState(ctx, 1))
	got, err = repo.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	for i := 0; i < 2; i++ {
		ok, err := repo.CheckRateLimit(ctx, 1, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := repo.CheckRateLimit(ctx, 1, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
