// Package storage keeps small per-visitor string slots, the server-side
// counterpart of a browser's localStorage.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Local is one visitor's key/value storage.
type Local interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Backend hands out Local storage scoped to a visitor.
type Backend interface {
	For(visitorID string) Local
}

// RedisBackend stores slots as redis strings under visitor:{id}:{key}.
type RedisBackend struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisBackend creates a redis-backed storage backend. A zero ttl keeps
// slots until removed.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{redis: client, ttl: ttl}
}

// For implements Backend.
func (b *RedisBackend) For(visitorID string) Local {
	return &redisLocal{backend: b, visitorID: visitorID}
}

type redisLocal struct {
	backend   *RedisBackend
	visitorID string
}

func (l *redisLocal) key(key string) string {
	return fmt.Sprintf("visitor:%s:%s", l.visitorID, key)
}

func (l *redisLocal) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := l.backend.redis.Get(ctx, l.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return val, true, nil
}

func (l *redisLocal) Set(ctx context.Context, key, value string) error {
	if err := l.backend.redis.Set(ctx, l.key(key), value, l.backend.ttl).Err(); err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

func (l *redisLocal) Remove(ctx context.Context, key string) error {
	if err := l.backend.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("storage: remove %s: %w", key, err)
	}
	return nil
}

// MemoryBackend keeps slots in process memory. Used when redis is not
// configured and in tests.
type MemoryBackend struct {
	mu    sync.RWMutex
	slots map[string]map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: make(map[string]map[string]string)}
}

// For implements Backend.
func (b *MemoryBackend) For(visitorID string) Local {
	return &memoryLocal{backend: b, visitorID: visitorID}
}

type memoryLocal struct {
	backend   *MemoryBackend
	visitorID string
}

func (l *memoryLocal) Get(_ context.Context, key string) (string, bool, error) {
	l.backend.mu.RLock()
	defer l.backend.mu.RUnlock()
	val, ok := l.backend.slots[l.visitorID][key]
	return val, ok, nil
}

func (l *memoryLocal) Set(_ context.Context, key, value string) error {
	l.backend.mu.Lock()
	defer l.backend.mu.Unlock()
	slots, ok := l.backend.slots[l.visitorID]
	if !ok {
		slots = make(map[string]string)
		l.backend.slots[l.visitorID] = slots
	}
	slots[key] = value
	return nil
}

func (l *memoryLocal) Remove(_ context.Context, key string) error {
	l.backend.mu.Lock()
	defer l.backend.mu.Unlock()
	slots, ok := l.backend.slots[l.visitorID]
	if !ok {
		return nil
	}
	delete(slots, key)
	if len(slots) == 0 {
		delete(l.backend.slots, l.visitorID)
	}
	return nil
}

// Visitors reports how many visitors hold at least one slot.
func (b *MemoryBackend) Visitors() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.slots)
}
