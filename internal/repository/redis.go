package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"breakbot/internal/models"

	"github.com/redis/go-redis/v9"
)

const stateTTL = 30 * time.Minute

// RedisStateRepository keeps conversation state in Redis with a TTL so
// abandoned flows expire on their own.
type RedisStateRepository struct {
	client *redis.Client
}

func NewRedisStateRepository(client *redis.Client) *RedisStateRepository {
	return &RedisStateRepository{client: client}
}

func stateKey(userID int64) string {
	return fmt.Sprintf("breakbot:state:%d", userID)
}

func rateKey(userID int64) string {
	return fmt.Sprintf("breakbot:rate:%d", userID)
}

// GetState returns the user's state, or nil when none is stored.
func (r *RedisStateRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	data, err := r.client.Get(ctx, stateKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	var state models.UserState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

func (r *RedisStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := r.client.Set(ctx, stateKey(state.UserID), data, stateTTL).Err(); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

func (r *RedisStateRepository) ClearState(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	return nil
}

// CheckRateLimit counts this call with INCR and starts the window on
// the first hit.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	key := rateKey(userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("rate expire: %w", err)
		}
	}
	return count <= int64(limit), nil
}
