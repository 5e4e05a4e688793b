package devserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers which task a create request's idempotency key produced
// so a retried request returns the same task instead of a second one.
type Deduper interface {
	// Add records key -> taskID unless the key is already known, in which
	// case the recorded task id is returned with added false.
	Add(ctx context.Context, projectID, key, taskID string) (existing string, added bool, err error)
	// Remove forgets a key, used when the create it guarded failed.
	Remove(ctx context.Context, projectID, key string) error
}

// RedisDeduper stores idempotency keys in Redis so several dev server
// instances share them.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(projectID, key string) string {
	return fmt.Sprintf("devserver:idem:%s:%s", projectID, key)
}

func (r *RedisDeduper) Add(ctx context.Context, projectID, key, taskID string) (string, bool, error) {
	k := r.key(projectID, key)
	added, err := r.client.SetNX(ctx, k, taskID, r.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if added {
		return taskID, true, nil
	}
	existing, err := r.client.Get(ctx, k).Result()
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

func (r *RedisDeduper) Remove(ctx context.Context, projectID, key string) error {
	return r.client.Del(ctx, r.key(projectID, key)).Err()
}

// MemoryDeduper keeps idempotency keys for the life of the process.
type MemoryDeduper struct {
	mu   sync.Mutex
	keys map[string]string
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{keys: map[string]string{}}
}

func (m *MemoryDeduper) Add(_ context.Context, projectID, key, taskID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := projectID + ":" + key
	if existing, ok := m.keys[k]; ok {
		return existing, false, nil
	}
	m.keys[k] = taskID
	return taskID, true, nil
}

func (m *MemoryDeduper) Remove(_ context.Context, projectID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, projectID+":"+key)
	return nil
}
