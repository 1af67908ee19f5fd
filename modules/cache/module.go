package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Module owns the Redis client backing the room cache.
type Module struct {
	cache     *Cache
	client    *redis.Client
	redisAddr string
	logger    types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a cache module for the Redis server at redisAddr.
// The client connects lazily; Start verifies the connection.
func NewModule(redisAddr, password string, ttl time.Duration, logger types.Logger) *Module {
	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     password,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	return &Module{
		cache:     New(client, "chatrelay:", ttl),
		client:    client,
		redisAddr: redisAddr,
		logger:    logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// Start checks the Redis connection and drops snapshots left by a previous run.
func (m *Module) Start(ctx context.Context) error {
	if err := m.cache.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cleared, err := m.cache.ClearRooms(ctx)
	if err != nil {
		m.logger.Warn("Failed to clear stale room snapshots", "error", err)
	}

	m.logger.Info("Connected to Redis",
		"addr", m.redisAddr,
		"ttl", m.cache.ttl,
		"cleared", cleared)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	m.logger.Info("Cache module stopped")
	return nil
}

// Health pings Redis and reports cache statistics.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.cache.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}

	stats := m.cache.GetStats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr":     m.redisAddr,
			"hits":     stats.Hits,
			"misses":   stats.Misses,
			"hit_rate": stats.HitRate,
		},
	}
}

// GetCache returns the cache instance.
func (m *Module) GetCache() *Cache {
	return m.cache
}
