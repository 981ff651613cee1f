package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"timetrack/internal/common"
	"timetrack/internal/domain/model"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// SessionRepository keeps the server-side sessions that gate the live
// channel. Get returns common.ErrNotFound for unknown or expired ids.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
}

const sessionKeyPrefix = "sess:"

type redisSessionRepository struct {
	rdb *redis.Client
}

func NewRedisSessionRepository(rdb *redis.Client) SessionRepository {
	return &redisSessionRepository{rdb: rdb}
}

func (r *redisSessionRepository) Create(ctx context.Context, s *model.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redisSessionRepository.Create marshal: %w", err)
	}
	if err := r.rdb.Set(ctx, sessionKeyPrefix+s.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redisSessionRepository.Create: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := r.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("redisSessionRepository.Get: %w", err)
	}
	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("redisSessionRepository.Get unmarshal: %w", err)
	}
	return &s, nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redisSessionRepository.Delete: %w", err)
	}
	return nil
}

type memSession struct {
	session   model.Session
	expiresAt time.Time
}

type memSessionRepository struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	sessions map[string]memSession
}

func NewMemorySessionRepository(clock clockwork.Clock) SessionRepository {
	return &memSessionRepository{clock: clock, sessions: make(map[string]memSession)}
}

func (r *memSessionRepository) Create(_ context.Context, s *model.Session, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = memSession{session: *s, expiresAt: r.clock.Now().Add(ttl)}
	return nil
}

func (r *memSessionRepository) Get(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ms, ok := r.sessions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if !r.clock.Now().Before(ms.expiresAt) {
		delete(r.sessions, id)
		return nil, common.ErrNotFound
	}
	s := ms.session
	return &s, nil
}

func (r *memSessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}
