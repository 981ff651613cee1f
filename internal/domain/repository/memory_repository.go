package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"timetrack/internal/common"
	"timetrack/internal/domain/model"
)

// In-memory stores back STORE_DRIVER=memory and the service tests.

type memUserRepository struct {
	mu         sync.RWMutex
	byID       map[string]model.User
	byUsername map[string]string
}

func NewMemoryUserRepository() UserRepository {
	return &memUserRepository{
		byID:       make(map[string]model.User),
		byUsername: make(map[string]string),
	}
}

func (r *memUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return fmt.Errorf("user with given username already exists: %w", common.ErrConflict)
	}
	r.byID[user.ID] = *user
	r.byUsername[user.Username] = user.ID
	return nil
}

func (r *memUserRepository) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *memUserRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

type memTimerRepository struct {
	mu     sync.RWMutex
	timers map[string]model.Timer
}

func NewMemoryTimerRepository() TimerRepository {
	return &memTimerRepository{timers: make(map[string]model.Timer)}
}

func (r *memTimerRepository) Create(_ context.Context, t *model.Timer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.timers[t.ID]; exists {
		return fmt.Errorf("timer %s already exists: %w", t.ID, common.ErrConflict)
	}
	r.timers[t.ID] = copyTimer(*t)
	return nil
}

func (r *memTimerRepository) FindByID(_ context.Context, id string) (*model.Timer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.timers[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	t = copyTimer(t)
	return &t, nil
}

func (r *memTimerRepository) ListByUser(_ context.Context, userID string) ([]model.Timer, error) {
	return r.filter(func(t model.Timer) bool { return t.UserID == userID }), nil
}

func (r *memTimerRepository) ListAll(_ context.Context) ([]model.Timer, error) {
	return r.filter(func(model.Timer) bool { return true }), nil
}

func (r *memTimerRepository) Stop(_ context.Context, id string, end time.Time, durationSeconds int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[id]
	if !ok || !t.IsActive {
		return false, nil
	}
	t.IsActive = false
	t.End = &end
	t.DurationInSeconds = durationSeconds
	r.timers[id] = t
	return true, nil
}

func (r *memTimerRepository) filter(keep func(model.Timer) bool) []model.Timer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Timer{}
	for _, t := range r.timers {
		if keep(t) {
			out = append(out, copyTimer(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func copyTimer(t model.Timer) model.Timer {
	if t.End != nil {
		e := *t.End
		t.End = &e
	}
	return t
}
