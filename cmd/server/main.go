package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aegis/internal/platform/config"
	"aegis/internal/platform/health"
	"aegis/internal/platform/logger"
	platformMW "aegis/internal/platform/middleware"
	platformredis "aegis/internal/platform/redis"
	"aegis/internal/ratelimit/anomaly"
	ratelimitcfg "aegis/internal/ratelimit/config"
	"aegis/internal/ratelimit/globalthrottle"
	"aegis/internal/ratelimit/handler"
	"aegis/internal/ratelimit/limiter"
	"aegis/internal/ratelimit/metrics"
	gate "aegis/internal/ratelimit/middleware"
	"aegis/internal/ratelimit/service"
	anomalystore "aegis/internal/ratelimit/store/anomaly"
	"aegis/internal/ratelimit/store/window"
	"aegis/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Gate logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing aegis gate",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"fail_closed", cfg.FailClosed,
	)

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close() //nolint:errcheck

	registry, err := ratelimitcfg.BuildRegistry(cfg.TiersFile)
	if err != nil {
		log.Error("tier registry build failed", "error", err, "tiers_file", cfg.TiersFile)
		os.Exit(1)
	}
	log.Info("tier registry loaded", "tiers", registry.Names())

	m := metrics.New()

	limiterOpts := []limiter.Option{
		limiter.WithLogger(log),
		limiter.WithMetrics(m),
	}
	if cfg.FailClosed {
		limiterOpts = append(limiterOpts, limiter.WithFailClosed())
	}
	windowStore := window.NewCircuit(
		window.NewRedis(redisClient.Client),
		circuit.New("window-store"),
		log,
	)
	lim, err := limiter.New(windowStore, limiterOpts...)
	if err != nil {
		log.Error("limiter init failed", "error", err)
		os.Exit(1)
	}

	det, err := anomaly.New(anomalystore.NewRedis(redisClient.Client),
		anomaly.WithLogger(log),
		anomaly.WithMetrics(m),
	)
	if err != nil {
		log.Error("anomaly detector init failed", "error", err)
		os.Exit(1)
	}

	svc, err := service.New(registry, lim, det,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithStoreTimeout(cfg.StoreTimeout),
	)
	if err != nil {
		log.Error("gate service init failed", "error", err)
		os.Exit(1)
	}

	throttle, err := globalthrottle.New(cfg.Throttle.RequestsPerSecond, cfg.Throttle.Burst,
		globalthrottle.WithLogger(log),
		globalthrottle.WithMetrics(m),
	)
	if err != nil {
		log.Error("global throttle init failed", "error", err)
		os.Exit(1)
	}

	healthHandler := health.New()
	healthHandler.RegisterCheck("redis", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return redisClient.Health(ctx)
	})

	gateHandler := handler.New(svc, log)
	gateMW := gate.New(svc, nil, log)

	router := chi.NewRouter()
	router.Use(platformMW.RequestID)
	router.Use(platformMW.ClientIP)
	router.Use(throttle.Middleware)

	router.Handle("/metrics", promhttp.Handler())
	healthHandler.Register(router)

	// The decision endpoint is itself gated: network callers consume the
	// standard tier keyed by API key or address.
	router.Group(func(r chi.Router) {
		r.Use(gateMW.RateLimit(ratelimitcfg.TierStandard))
		gateHandler.Register(r)
	})
	gateHandler.RegisterAdmin(router)

	// Pool stats feed the aegis_redis_pool_* gauges.
	statsDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				redisClient.RecordPoolStats()
			case <-statsDone:
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")
	close(statsDone)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
