package importer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
)

var ErrSessionNotFound = errors.New("import session not found")

// SessionStore persists review sessions between requests.
type SessionStore interface {
	Get(ctx context.Context, id string) (*ReviewSession, error)
	Save(ctx context.Context, s *ReviewSession) error
	Delete(ctx context.Context, id string) error
}

const sessionKeyPrefix = "ImportSession:"

// redisSessionStore keeps sessions in Redis so review state survives
// instance restarts and is shared across replicas.
type redisSessionStore struct {
	ttl time.Duration
}

func NewRedisSessionStore(ttl time.Duration) SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisSessionStore{ttl: ttl}
}

func (r *redisSessionStore) Get(ctx context.Context, id string) (*ReviewSession, error) {
	var s *ReviewSession
	exists, err := config.GetRedisObject(sessionKeyPrefix+id, &s)
	if err != nil {
		return nil, err
	}
	if !exists || s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *redisSessionStore) Save(ctx context.Context, s *ReviewSession) error {
	s.UpdatedAt = time.Now().UTC()
	return config.SetRedisObject(sessionKeyPrefix+s.ID, s, r.ttl)
}

func (r *redisSessionStore) Delete(ctx context.Context, id string) error {
	return config.RemoveRedisKey(sessionKeyPrefix + id)
}

// memorySessionStore is a process-local store for tests and single-instance
// deployments. Sessions round-trip through JSON so callers never share
// pointers with the store, matching the Redis store's semantics.
type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{sessions: map[string][]byte{}}
}

func (m *memorySessionStore) Get(ctx context.Context, id string) (*ReviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	var s ReviewSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *memorySessionStore) Save(ctx context.Context, s *ReviewSession) error {
	s.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = raw
	return nil
}

func (m *memorySessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
