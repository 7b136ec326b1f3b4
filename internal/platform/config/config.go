package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string

	// FailClosed switches the limiter from its default fail-open posture
	// (store outage admits traffic) to denying requests when the counter
	// store is unreachable. Availability vs. strictness is a product
	// decision, so it is a knob rather than a constant.
	FailClosed bool

	// StoreTimeout bounds each counter store round-trip.
	StoreTimeout time.Duration

	// TiersFile optionally points at a YAML file with additional tiers.
	TiersFile string

	Throttle ThrottleConfig
	Redis    RedisConfig
}

// ThrottleConfig bounds per-instance request throughput.
type ThrottleConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// RedisConfig describes the shared counter store connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("AEGIS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	env := os.Getenv("AEGIS_ENV")
	if env == "" {
		env = "development"
	}

	redisURL := os.Getenv("AEGIS_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	return Server{
		Addr:         addr,
		Environment:  env,
		FailClosed:   os.Getenv("AEGIS_FAIL_MODE") == "closed",
		StoreTimeout: durationFromEnv("AEGIS_STORE_TIMEOUT", 150*time.Millisecond),
		TiersFile:    os.Getenv("AEGIS_TIERS_FILE"),
		Throttle: ThrottleConfig{
			RequestsPerSecond: floatFromEnv("AEGIS_THROTTLE_RPS", 1000),
			Burst:             intFromEnv("AEGIS_THROTTLE_BURST", 200),
		},
		Redis: RedisConfig{
			URL:          redisURL,
			PoolSize:     intFromEnv("AEGIS_REDIS_POOL_SIZE", 10),
			MinIdleConns: intFromEnv("AEGIS_REDIS_MIN_IDLE", 2),
			DialTimeout:  durationFromEnv("AEGIS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationFromEnv("AEGIS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationFromEnv("AEGIS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

func durationFromEnv(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intFromEnv(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func floatFromEnv(name string, fallback float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
