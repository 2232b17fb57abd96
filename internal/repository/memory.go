package repository

import (
	"context"
	"sync"
	"time"

	"breakbot/internal/models"
)

// MemoryStateRepository is the in-process fallback used when Redis is
// not configured or unreachable. State is lost on restart, which is
// acceptable for short conversation flows.
type MemoryStateRepository struct {
	mu     sync.Mutex
	states map[int64]*models.UserState
	rates  map[int64]*rateWindow
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{
		states: make(map[int64]*models.UserState),
		rates:  make(map[int64]*rateWindow),
	}
}

func (r *MemoryStateRepository) GetState(_ context.Context, userID int64) (*models.UserState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[userID], nil
}

func (r *MemoryStateRepository) SetState(_ context.Context, state *models.UserState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.UserID] = state
	return nil
}

func (r *MemoryStateRepository) ClearState(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, userID)
	return nil
}

func (r *MemoryStateRepository) CheckRateLimit(_ context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	w := r.rates[userID]
	if w == nil || now.After(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		r.rates[userID] = w
	}
	w.count++
	return w.count <= limit, nil
}
