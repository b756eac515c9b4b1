package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/scanmarket-backend/api/controllers"
	"github.com/angelmondragon/scanmarket-backend/api/routes"
	"github.com/angelmondragon/scanmarket-backend/pkg/config"
	"github.com/angelmondragon/scanmarket-backend/pkg/db"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
	"github.com/angelmondragon/scanmarket-backend/pkg/migrate"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	market := metrics.NewMarketplaceMetrics(reg)

	app, err := wire(ctx, cfg, logg, dbClient, market)
	requireResource(ctx, logg, "application", err)

	ready := map[string]controllers.Pinger{"db": dbClient}
	if app.redis != nil {
		ready["redis"] = app.redis
	}

	deps := routes.Deps{
		Config:       cfg,
		Logger:       logg,
		Ready:        ready,
		Idempotency:  app.idempotency,
		Registry:     reg,
		HTTPMetrics:  metrics.NewHTTPMetrics(reg),
		Auth:         app.auth,
		Assets:       app.assets,
		Products:     app.products,
		Chat:         app.chat,
		Hub:          app.hub,
		AI:           app.ai,
		LocalStorage: app.localStore,
	}
	// a typed nil would defeat the router's nil check
	if app.redis != nil {
		deps.RateLimiter = app.redis
	}

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"storage":    cfg.Storage.Backend,
		"chat_bus":   cfg.Chat.Bus,
		"ai_enabled": cfg.AI.Enabled(),
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var exitErr error
	select {
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown signal received")
	case err := <-serveErr:
		exitErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// The hub closes sockets first so Shutdown is not left waiting on hijacked connections.
	app.hub.Close()
	exitErr = multierr.Combine(
		exitErr,
		server.Shutdown(shutdownCtx),
		app.close(),
		dbClient.Close(),
	)
	if exitErr != nil {
		logg.Error(logCtx, "api server stopped with errors", exitErr)
		os.Exit(1)
	}
	logg.Info(logCtx, "api server stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
