package storage

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"prism-board/domain"
)

// Contract records which endpoint and payload shape a backend accepted for
// moving a task into a column. It is independent of the task id, so it can be
// replayed for any task of the same project.
type Contract struct {
	Endpoint      string `json:"endpoint"`
	StatusField   string `json:"statusField"`
	StatusValue   string `json:"statusValue"`
	PositionField string `json:"positionField,omitempty"`
}

// ContractCache remembers the last winning Contract per project and column.
// Implementations treat every failure as a miss; the cache is an
// optimisation and never a source of errors for callers.
type ContractCache interface {
	Load(ctx context.Context, projectID string, col domain.Column) (Contract, bool)
	Store(ctx context.Context, projectID string, col domain.Column, c Contract)
	Evict(ctx context.Context, projectID string, col domain.Column)
}

// RedisContractCache keeps contracts in Redis so every client instance
// pointed at the same backend shares what was learned.
type RedisContractCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisContractCache creates a cache using the provided Redis client and
// TTL. A zero TTL disables writes.
func NewRedisContractCache(client *redis.Client, ttl time.Duration) *RedisContractCache {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisContractCache{redis: client, ttl: ttl}
}

func (c *RedisContractCache) Load(ctx context.Context, projectID string, col domain.Column) (Contract, bool) {
	if c.redis == nil {
		return Contract{}, false
	}
	key := contractCacheKey(projectID, col)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the full probe without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return Contract{}, false
	}
	var contract Contract
	if err := sonic.Unmarshal(data, &contract); err != nil || contract.Endpoint == "" || contract.StatusField == "" {
		_ = c.redis.Del(ctx, key).Err()
		return Contract{}, false
	}
	return contract, true
}

func (c *RedisContractCache) Store(ctx context.Context, projectID string, col domain.Column, contract Contract) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(contract)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, contractCacheKey(projectID, col), data, c.ttl).Err()
}

func (c *RedisContractCache) Evict(ctx context.Context, projectID string, col domain.Column) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, contractCacheKey(projectID, col)).Result()
}

func contractCacheKey(projectID string, col domain.Column) string {
	return "board:contract:" + projectID + ":" + string(col)
}

// MemoryContractCache is a process local ContractCache.
type MemoryContractCache struct {
	mu        sync.Mutex
	contracts map[string]Contract
}

func NewMemoryContractCache() *MemoryContractCache {
	return &MemoryContractCache{contracts: make(map[string]Contract)}
}

func (c *MemoryContractCache) Load(_ context.Context, projectID string, col domain.Column) (Contract, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	contract, ok := c.contracts[contractCacheKey(projectID, col)]
	return contract, ok
}

func (c *MemoryContractCache) Store(_ context.Context, projectID string, col domain.Column, contract Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[contractCacheKey(projectID, col)] = contract
}

func (c *MemoryContractCache) Evict(_ context.Context, projectID string, col domain.Column) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.contracts, contractCacheKey(projectID, col))
}
