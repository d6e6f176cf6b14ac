// Package marketdata: Redis read-through cache for bar windows, betas and
// membership windows. Grounded on the project's former cache.CacheService
// (graceful degradation behind a simple failure-count circuit breaker,
// background recovery ping, JSON get/set helpers), retargeted from user
// settings/mode-config keys to bar/beta/membership keys.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"dcasim/internal/dca"
	"dcasim/internal/logging"
)

// Key prefixes for the three cached resource kinds, per SPEC_FULL.md's
// Redis key conventions.
const (
	keyBars       = "dcasim:bars:%s:%s:%s"
	keyBeta       = "dcasim:beta:%s"
	keyMembership = "dcasim:membership:%s"
)

const (
	barsTTL       = 24 * time.Hour
	betaTTL       = 6 * time.Hour
	membershipTTL = 24 * time.Hour
)

// RedisConfig holds the cache's connection parameters.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	Enabled  bool
}

// Cache wraps a redis.Client with graceful degradation: when Redis is
// unhealthy, every method returns an error so the caller falls back to the
// Postgres store directly instead of blocking on a dead dependency.
type Cache struct {
	client *redis.Client

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewCache dials Redis and verifies connectivity, returning a degraded-mode
// Cache (not an error) if the initial ping fails.
func NewCache(cfg RedisConfig) (*Cache, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("market data cache is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	c := &Cache{
		client:        client,
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logging.Default().Warn("market data cache starting in degraded mode", "error", err.Error())
		return c, nil
	}

	c.healthy = true
	c.lastCheck = time.Now()
	logging.Default().Info("market data cache connected", "address", cfg.Address)
	return c, nil
}

// IsHealthy reports whether Redis is currently reachable.
func (c *Cache) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

func (c *Cache) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	if c.failureCount >= c.maxFailures {
		c.healthy = false
	}
}

func (c *Cache) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = true
	c.failureCount = 0
	c.lastCheck = time.Now()
}

func (c *Cache) checkHealth(ctx context.Context) {
	c.mu.RLock()
	shouldCheck := !c.healthy && time.Since(c.lastCheck) >= c.checkInterval
	c.mu.RUnlock()
	if !shouldCheck {
		return
	}
	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.client.Ping(pingCtx).Err(); err == nil {
			c.recordSuccess()
		}
	}()
}

func (c *Cache) getJSON(ctx context.Context, key string, dest interface{}) error {
	c.checkHealth(ctx)
	if !c.IsHealthy() {
		return fmt.Errorf("market data cache unavailable (circuit breaker open)")
	}
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return err
		}
		c.recordFailure()
		return fmt.Errorf("cache get failed: %w", err)
	}
	c.recordSuccess()
	return json.Unmarshal([]byte(data), dest)
}

func (c *Cache) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.checkHealth(ctx)
	if !c.IsHealthy() {
		return fmt.Errorf("market data cache unavailable (circuit breaker open)")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.recordFailure()
		return fmt.Errorf("cache set failed: %w", err)
	}
	c.recordSuccess()
	return nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func barsKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf(keyBars, symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func betaKey(symbol string) string { return fmt.Sprintf(keyBeta, symbol) }

func membershipKey(symbol string) string { return fmt.Sprintf(keyMembership, symbol) }

// GetBars returns a cached bar window, or redis.Nil-wrapped error on miss.
func (c *Cache) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]dca.Bar, error) {
	var bars []dca.Bar
	err := c.getJSON(ctx, barsKey(symbol, start, end), &bars)
	return bars, err
}

// SetBars caches a bar window.
func (c *Cache) SetBars(ctx context.Context, symbol string, start, end time.Time, bars []dca.Bar) error {
	return c.setJSON(ctx, barsKey(symbol, start, end), bars, barsTTL)
}

// GetBeta returns a cached beta, or redis.Nil-wrapped error on miss.
func (c *Cache) GetBeta(ctx context.Context, symbol string) (*dca.Beta, error) {
	var b dca.Beta
	if err := c.getJSON(ctx, betaKey(symbol), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// SetBeta caches a beta value.
func (c *Cache) SetBeta(ctx context.Context, symbol string, b dca.Beta) error {
	return c.setJSON(ctx, betaKey(symbol), b, betaTTL)
}

// GetMembership returns cached membership windows, or redis.Nil-wrapped
// error on miss.
func (c *Cache) GetMembership(ctx context.Context, symbol string) ([]dca.IndexMembership, error) {
	var windows []dca.IndexMembership
	err := c.getJSON(ctx, membershipKey(symbol), &windows)
	return windows, err
}

// SetMembership caches membership windows.
func (c *Cache) SetMembership(ctx context.Context, symbol string, windows []dca.IndexMembership) error {
	return c.setJSON(ctx, membershipKey(symbol), windows, membershipTTL)
}

// IsMiss reports whether err represents a cache miss rather than a failure.
func IsMiss(err error) bool { return err == redis.Nil }
