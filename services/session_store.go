package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yeremiapane/restaurant-pos/models"
)

// SessionStore caches resolved sessions by access token so pages do not hit
// /validate_token on every request.
type SessionStore interface {
	Get(ctx context.Context, token string) (*models.Session, bool, error)
	Set(ctx context.Context, token string, s *models.Session) error
	Delete(ctx context.Context, token string) error
}

// keySession: session:{sha256(token)} -> JSON models.Session
const keySession = "session:%s"

func sessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf(keySession, hex.EncodeToString(sum[:]))
}

type memoryEntry struct {
	session models.Session
	expires time.Time
}

// MemorySessionStore is a process-local TTL map.
type MemorySessionStore struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (ms *MemorySessionStore) Get(_ context.Context, token string) (*models.Session, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := sessionKey(token)
	e, ok := ms.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !ms.now().Before(e.expires) {
		delete(ms.entries, key)
		return nil, false, nil
	}
	s := e.session
	return &s, true, nil
}

func (ms *MemorySessionStore) Set(_ context.Context, token string, s *models.Session) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	// drop expired entries while we hold the lock anyway
	for k, e := range ms.entries {
		if !now.Before(e.expires) {
			delete(ms.entries, k)
		}
	}
	ms.entries[sessionKey(token)] = memoryEntry{session: *s, expires: now.Add(ms.ttl)}
	return nil
}

func (ms *MemorySessionStore) Delete(_ context.Context, token string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.entries, sessionKey(token))
	return nil
}

// RedisSessionStore shares sessions between several web app instances.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (rs *RedisSessionStore) Get(ctx context.Context, token string) (*models.Session, bool, error) {
	raw, err := rs.rdb.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

func (rs *RedisSessionStore) Set(ctx context.Context, token string, s *models.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return rs.rdb.Set(ctx, sessionKey(token), raw, rs.ttl).Err()
}

func (rs *RedisSessionStore) Delete(ctx context.Context, token string) error {
	return rs.rdb.Del(ctx, sessionKey(token)).Err()
}
