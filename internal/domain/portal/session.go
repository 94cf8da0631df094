package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNoSession is returned by a SessionStore for an unknown token.
var ErrNoSession = errors.New("portal session not found")

// Session is an anonymous grant to read one patient's records.
type Session struct {
	Token      string    `json:"token"`
	PatientID  uuid.UUID `json:"patient_id"`
	AccessTime time.Time `json:"access_time"`
}

// SessionStore keeps portal sessions. ttl only bounds storage; the access
// budget is enforced by the service on every read.
type SessionStore interface {
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Load(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

const sessionKeyPrefix = "portal:session:"

type RedisStore struct {
	c *redis.Client
}

func NewRedisStore(c *redis.Client) *RedisStore { return &RedisStore{c: c} }

func sessionKey(token string) string { return sessionKeyPrefix + token }

func (r *RedisStore) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return r.c.Set(ctx, sessionKey(s.Token), raw, ttl).Err()
}

func (r *RedisStore) Load(ctx context.Context, token string) (*Session, error) {
	raw, err := r.c.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNoSession
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, token string) error {
	return r.c.Del(ctx, sessionKey(token)).Err()
}

// MemoryStore is the single-process store used when no Redis is configured.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Save(_ context.Context, s *Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = *s
	return nil
}

func (m *MemoryStore) Load(_ context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNoSession
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}
