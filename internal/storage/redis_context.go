package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisActivationCache is an optional, shared cache of the most recent
// IntfInfo summary per adapter instance. It does not participate in the
// match predicate (spec §4.1 is purely in-process) — it is a read
// side-channel so a second process in a multi-reader gateway deployment
// can display "last seen" diagnostics for a reader it does not own.
// Grounded on the teacher's RedisContextStorage connection-pool setup,
// standardized on redis/go-redis/v9.
type RedisActivationCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisActivationCacheConfig holds Redis connection configuration.
type RedisActivationCacheConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	TTL          time.Duration
	KeyPrefix    string
}

// LastSeenSnapshot is the diagnostic payload published to the cache on
// every activation.
type LastSeenSnapshot struct {
	ReaderID  string    `json:"reader_id"`
	Protocol  string    `json:"protocol"`
	RFIntf    string    `json:"rf_intf"`
	Mode      string    `json:"mode"`
	SeenAt    time.Time `json:"seen_at"`
	StateName string    `json:"state_name"`
}

// NewRedisActivationCache creates a new Redis-backed activation cache.
func NewRedisActivationCache(config RedisActivationCacheConfig) (*RedisActivationCache, error) {
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.MinIdleConns == 0 {
		config.MinIdleConns = 2
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "nciadapter"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisActivationCache{
		client: client,
		prefix: config.KeyPrefix,
		ttl:    config.TTL,
	}, nil
}

func (c *RedisActivationCache) key(readerID string) string {
	return fmt.Sprintf("%s:last_seen:%s", c.prefix, readerID)
}

// PublishLastSeen stores the most recent activation snapshot for readerID.
func (c *RedisActivationCache) PublishLastSeen(ctx context.Context, readerID string, snapshot LastSeenSnapshot) error {
	snapshot.ReaderID = readerID
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal last-seen snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(readerID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to publish last-seen snapshot: %w", err)
	}
	return nil
}

// GetLastSeen retrieves the most recent activation snapshot for readerID.
func (c *RedisActivationCache) GetLastSeen(ctx context.Context, readerID string) (LastSeenSnapshot, bool, error) {
	val, err := c.client.Get(ctx, c.key(readerID)).Result()
	if err == redis.Nil {
		return LastSeenSnapshot{}, false, nil
	}
	if err != nil {
		return LastSeenSnapshot{}, false, fmt.Errorf("failed to get last-seen snapshot: %w", err)
	}

	var snapshot LastSeenSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return LastSeenSnapshot{}, false, fmt.Errorf("failed to unmarshal last-seen snapshot: %w", err)
	}
	return snapshot, true, nil
}

// Close closes the Redis connection.
func (c *RedisActivationCache) Close() error {
	return c.client.Close()
}

// Ping tests the Redis connection.
func (c *RedisActivationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// PoolStats returns connection pool statistics.
func (c *RedisActivationCache) PoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}
