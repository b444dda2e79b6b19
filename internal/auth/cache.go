package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when no session is cached for a token.
var ErrCacheMiss = errors.New("session cache miss")

// Cache keeps resolved sessions for the lifetime of their token.
type Cache interface {
	Get(ctx context.Context, token string) (*Session, error)
	Set(ctx context.Context, token string, session Session, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}

// RedisCache stores sessions as JSON under a hash of the token.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisClient opens a client for addr and checks it answers.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, token string) (*Session, error) {
	raw, err := c.client.Get(ctx, cacheKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get cached session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode cached session: %w", err)
	}
	return &s, nil
}

func (c *RedisCache) Set(ctx context.Context, token string, session Session, ttl time.Duration) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(token), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, token string) error {
	if err := c.client.Del(ctx, cacheKey(token)).Err(); err != nil {
		return fmt.Errorf("drop cached session: %w", err)
	}
	return nil
}

type cachedSession struct {
	session Session
	expires time.Time
}

// MemoryCache keeps sessions in process.
type MemoryCache struct {
	sessions map[string]cachedSession
	mu       sync.RWMutex
	now      func() time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		sessions: make(map[string]cachedSession),
		now:      time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	entry, exists := m.sessions[cacheKey(token)]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrCacheMiss
	}
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		m.mu.Lock()
		delete(m.sessions, cacheKey(token))
		m.mu.Unlock()
		return nil, ErrCacheMiss
	}
	s := entry.session
	return &s, nil
}

func (m *MemoryCache) Set(_ context.Context, token string, session Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := cachedSession{session: session}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.sessions[cacheKey(token)] = entry
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, cacheKey(token))
	return nil
}
