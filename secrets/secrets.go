// Package secrets resolves secret values for component invocations: a
// pluggable Backend behind a Redis-backed cache-aside Store, plus an
// in-memory Store for tests. Plaintext never crosses a boundary other
// than Store.Get's return value — it is never logged, checkpointed, or
// embedded in a node's output.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redacted wraps a secret value so that any accidental formatting or JSON
// marshaling of it — a stray %v in a log line, a struct embedding it by
// value — renders a fixed placeholder instead of the plaintext.
type Redacted string

func (Redacted) String() string                   { return "[REDACTED]" }
func (Redacted) MarshalJSON() ([]byte, error)      { return []byte(`"[REDACTED]"`), nil }
func (r Redacted) Reveal() string                  { return string(r) }

// Backend is the underlying durable secret source (a vault, a database
// table, a KMS-backed store) that Store caches in front of.
type Backend interface {
	Get(ctx context.Context, id string) (value string, version int, err error)
	List(ctx context.Context) ([]string, error)
}

// Store is the capability surface handed to component invocations via
// runtime.Capabilities.Secrets.
type Store interface {
	Get(ctx context.Context, id string) (value string, version int, err error)
	List(ctx context.Context) ([]string, error)
}

type cachedSecret struct {
	Value   string `json:"value"`
	Version int    `json:"version"`
}

// RedisCache is a cache-aside Store: Get first consults Redis, falling
// back to Backend on a miss and populating the cache with a TTL.
type RedisCache struct {
	client  *redis.Client
	backend Backend
	ttl     time.Duration
}

// NewRedisCache dials Redis at url, verifies connectivity, and wraps
// backend with a TTL cache.
func NewRedisCache(url string, backend Backend, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("secrets: parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("secrets: connecting to redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, backend: backend, ttl: ttl}, nil
}

func cacheKey(id string) string { return "secret:" + id }

// Get resolves a secret by id, serving from the Redis cache when present and
// falling back to Backend otherwise. The returned value is plaintext; callers
// must honor the no-log/no-checkpoint invariant themselves.
func (c *RedisCache) Get(ctx context.Context, id string) (string, int, error) {
	raw, err := c.client.Get(ctx, cacheKey(id)).Result()
	if err == nil {
		var cs cachedSecret
		if jsonErr := json.Unmarshal([]byte(raw), &cs); jsonErr == nil {
			return cs.Value, cs.Version, nil
		}
	}

	value, version, err := c.backend.Get(ctx, id)
	if err != nil {
		return "", 0, err
	}
	data, err := json.Marshal(cachedSecret{Value: value, Version: version})
	if err == nil {
		_ = c.client.Set(ctx, cacheKey(id), data, c.ttl).Err()
	}
	return value, version, nil
}

// List delegates directly to Backend; the id list is not cached since it is
// cheap to enumerate and staleness there is less consequential than for
// secret values themselves.
func (c *RedisCache) List(ctx context.Context) ([]string, error) {
	return c.backend.List(ctx)
}

// MemStore is an in-memory Store+Backend for tests and local
// development.
type MemStore struct {
	mu      sync.RWMutex
	secrets map[string]cachedSecret
}

// NewMemStore returns an empty in-memory secret store.
func NewMemStore() *MemStore {
	return &MemStore{secrets: make(map[string]cachedSecret)}
}

// Put seeds or overwrites a secret, bumping its version. Test-only; there
// is no production write path through Store, since secrets are provisioned
// out of band.
func (m *MemStore) Put(id, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.secrets[id]
	m.secrets[id] = cachedSecret{Value: value, Version: existing.Version + 1}
}

func (m *MemStore) Get(_ context.Context, id string) (string, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.secrets[id]
	if !ok {
		return "", 0, fmt.Errorf("secrets: unknown secret %q", id)
	}
	return s.Value, s.Version, nil
}

func (m *MemStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.secrets))
	for id := range m.secrets {
		ids = append(ids, id)
	}
	return ids, nil
}
