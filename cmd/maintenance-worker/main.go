package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/scanmarket-backend/internal/auth"
	"github.com/angelmondragon/scanmarket-backend/internal/cron"
	"github.com/angelmondragon/scanmarket-backend/internal/idempotency"
	"github.com/angelmondragon/scanmarket-backend/pkg/config"
	"github.com/angelmondragon/scanmarket-backend/pkg/db"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
	"github.com/angelmondragon/scanmarket-backend/pkg/migrate"
	"github.com/angelmondragon/scanmarket-backend/pkg/redis"
)

const lockKeyFormat = "sm:maintenance:lock:%s"

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "maintenance-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "maintenance-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "once": *once})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	reg := prometheus.NewRegistry()
	m := metrics.NewMaintenanceMetrics(reg)

	var lock cron.Lock = &cron.LocalLock{}
	if redisClient, err := redis.New(ctx, cfg.Redis); err == nil {
		defer redisClient.Close()
		lock, err = cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
		requireResource(ctx, logg, "maintenance lock", err)
	} else {
		logg.Warn(ctx, "redis unavailable, using an in-process lock: "+err.Error())
	}

	registry, err := cron.NewRegistry()
	requireResource(ctx, logg, "job registry", err)

	refreshJob, err := cron.NewRefreshTokenCleanupJob(
		auth.NewRefreshTokenRepository(dbClient.DB()), cfg.Maintenance.RefreshTokenGrace, logg, m)
	requireResource(ctx, logg, "refresh token job", err)
	requireResource(ctx, logg, "refresh token job", registry.Register(refreshJob))

	// redis-backed idempotency keys expire by TTL
	if cfg.Idempotency.Backend == config.IdempotencyBackendDB {
		store := idempotency.NewGormStore(dbClient.DB(), cfg.Idempotency.TTL)
		idemJob, err := cron.NewIdempotencyRetentionJob(store, store.TTL(), logg, m)
		requireResource(ctx, logg, "idempotency job", err)
		requireResource(ctx, logg, "idempotency job", registry.Register(idemJob))
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  m,
		Interval: cfg.Maintenance.Interval,
	})
	requireResource(ctx, logg, "maintenance service", err)

	if *once {
		if _, err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "maintenance run failed", err)
			os.Exit(1)
		}
		return
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, logg, reg, ":"+cfg.Maintenance.MetricsPort)
	}

	logg.Info(ctx, "starting maintenance worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "maintenance worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "maintenance worker shutting down")
}

func serveMetrics(ctx context.Context, logg *logger.Logger, reg *prometheus.Registry, addr string) {
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics server stopped", err)
	}
}

func lockKey(env string) string {
	if env == "" {
		env = config.AppEnvLocal
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
