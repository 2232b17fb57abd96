package repository

import (
	"context"
	"time"

	"breakbot/internal/models"
)

// StateRepository stores short-lived conversation state and enforces
// per-user rate limits.
type StateRepository interface {
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	// CheckRateLimit reports whether the user is still within limit
	// actions per window, counting this call.
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}
