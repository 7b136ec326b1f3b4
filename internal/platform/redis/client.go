// Package redis constructs the shared store client. The gate treats Redis
// as a hard dependency: startup fails fast when it is unreachable rather
// than serving with a silently degraded limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"aegis/internal/platform/config"
)

var (
	poolHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aegis_redis_pool_hits_total",
		Help: "Connections served from the pool",
	})
	poolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aegis_redis_pool_misses_total",
		Help: "Connections that required a new dial",
	})
	poolTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aegis_redis_pool_timeouts_total",
		Help: "Connection waits that timed out",
	})
	poolStaleConns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aegis_redis_pool_stale_conns_total",
		Help: "Stale connections removed from the pool",
	})
	poolTotalConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aegis_redis_pool_total_conns",
		Help: "Connections currently in the pool",
	})
	poolIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aegis_redis_pool_idle_conns",
		Help: "Idle connections currently in the pool",
	})
)

// Client wraps go-redis with a health probe and pool telemetry.
type Client struct {
	*redis.Client
	lastStats *redis.PoolStats
}

// New dials Redis per the given configuration and verifies the connection
// with a ping before returning.
func New(cfg config.RedisConfig) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection is currently usable.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}

// RecordPoolStats publishes pool telemetry. Gauges take the current values;
// go-redis exposes cumulative counters, so the counter metrics get the delta
// since the previous call. Call periodically from a background goroutine.
func (c *Client) RecordPoolStats() {
	stats := c.PoolStats()

	poolTotalConns.Set(float64(stats.TotalConns))
	poolIdleConns.Set(float64(stats.IdleConns))

	prev := c.lastStats
	if prev == nil {
		prev = &redis.PoolStats{}
	}
	addDelta(poolHits, stats.Hits, prev.Hits)
	addDelta(poolMisses, stats.Misses, prev.Misses)
	addDelta(poolTimeouts, stats.Timeouts, prev.Timeouts)
	addDelta(poolStaleConns, stats.StaleConns, prev.StaleConns)

	c.lastStats = stats
}

func addDelta(counter prometheus.Counter, current, previous uint32) {
	if current > previous {
		counter.Add(float64(current - previous))
	}
}
