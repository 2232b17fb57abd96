package repository

import (
	"context"
	"sync/atomic"
	"time"

	"breakbot/internal/models"

	"github.com/rs/zerolog"
)

const retryInterval = time.Minute

// FailoverStateRepository serves from the primary repository and fails
// over to the fallback when the primary errors. While the primary is
// marked down, it is retried at most once per retryInterval.
type FailoverStateRepository struct {
	primary  StateRepository
	fallback StateRepository
	logger   *zerolog.Logger
	isDown   atomic.Bool
	// lastCheck holds unix nanos of the last primary attempt; handlers
	// run concurrently, so it must stay atomic like isDown.
	lastCheck atomic.Int64
}

func NewFailoverStateRepository(primary, fallback StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether this call should try the primary.
func (r *FailoverStateRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := r.lastCheck.Load()
	now := time.Now()
	if now.Sub(time.Unix(0, last)) >= retryInterval {
		// Only one caller wins the retry; the rest stay on fallback.
		return r.lastCheck.CompareAndSwap(last, now.UnixNano())
	}
	return false
}

func (r *FailoverStateRepository) markDown(err error) {
	if r.isDown.CompareAndSwap(false, true) {
		r.logger.Warn().Err(err).Msg("Primary state repository failed, using fallback")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverStateRepository) markUp() {
	if r.isDown.CompareAndSwap(true, false) {
		r.logger.Info().Msg("Primary state repository recovered")
	}
}

func (r *FailoverStateRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	if r.usePrimary() {
		state, err := r.primary.GetState(ctx, userID)
		if err == nil {
			r.markUp()
			return state, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetState(ctx, userID)
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	if r.usePrimary() {
		if err := r.primary.SetState(ctx, state); err == nil {
			r.markUp()
			return nil
		} else {
			r.markDown(err)
		}
	}
	return r.fallback.SetState(ctx, state)
}

func (r *FailoverStateRepository) ClearState(ctx context.Context, userID int64) error {
	if r.usePrimary() {
		if err := r.primary.ClearState(ctx, userID); err == nil {
			r.markUp()
			return nil
		} else {
			r.markDown(err)
		}
	}
	return r.fallback.ClearState(ctx, userID)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		ok, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			r.markUp()
			return ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}
