package main

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/scanmarket-backend/internal/ai"
	"github.com/angelmondragon/scanmarket-backend/internal/assets"
	"github.com/angelmondragon/scanmarket-backend/internal/auth"
	"github.com/angelmondragon/scanmarket-backend/internal/chat"
	"github.com/angelmondragon/scanmarket-backend/internal/idempotency"
	"github.com/angelmondragon/scanmarket-backend/internal/products"
	"github.com/angelmondragon/scanmarket-backend/internal/users"
	"github.com/angelmondragon/scanmarket-backend/pkg/config"
	"github.com/angelmondragon/scanmarket-backend/pkg/db"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
	"github.com/angelmondragon/scanmarket-backend/pkg/redis"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage/local"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage/s3"
)

type application struct {
	redis      *redis.Client
	localStore *local.Store
	bus        chat.Bus
	hub        *chat.Hub
	cancelBus  context.CancelFunc

	idempotency *idempotency.Guard
	auth        auth.Service
	assets      assets.Service
	products    products.Service
	chat        chat.Service
	ai          ai.Service
}

func (a *application) close() error {
	if a.cancelBus != nil {
		a.cancelBus()
	}
	var err error
	if a.bus != nil {
		err = multierr.Append(err, a.bus.Close())
	}
	if a.redis != nil {
		err = multierr.Append(err, a.redis.Close())
	}
	return err
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Chat.Bus == config.ChatBusRedis ||
		cfg.Idempotency.Backend == config.IdempotencyBackendRedis
}

func wire(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, market *metrics.MarketplaceMetrics) (*application, error) {
	app := &application{}

	redisClient, err := redis.New(ctx, cfg.Redis)
	switch {
	case err == nil:
		app.redis = redisClient
	case needsRedis(cfg):
		return nil, fmt.Errorf("redis: %w", err)
	default:
		// rate limiting and the shared AI cache turn off without redis
		logg.Warn(ctx, "redis unavailable, continuing without it: "+err.Error())
	}

	gateway, err := newStorage(ctx, cfg, app)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("storage: %w", err), app.close())
	}

	if err := newChatBus(ctx, cfg, logg, market, app); err != nil {
		return nil, multierr.Append(fmt.Errorf("chat bus: %w", err), app.close())
	}

	if err := newServices(cfg, logg, dbClient, gateway, market, app); err != nil {
		return nil, multierr.Append(err, app.close())
	}

	switch cfg.Idempotency.Backend {
	case config.IdempotencyBackendRedis:
		app.idempotency = idempotency.NewGuard(idempotency.NewRedisStore(app.redis, cfg.Idempotency.TTL))
	default:
		app.idempotency = idempotency.NewGuard(idempotency.NewGormStore(dbClient.DB(), cfg.Idempotency.TTL))
	}
	return app, nil
}

func newStorage(ctx context.Context, cfg *config.Config, app *application) (storage.Gateway, error) {
	if cfg.Storage.Backend == config.StorageBackendS3 {
		return s3.New(ctx, s3.Options{
			Endpoint:    cfg.Storage.S3Endpoint,
			AccessKey:   cfg.Storage.S3AccessKey,
			SecretKey:   cfg.Storage.S3SecretKey,
			Bucket:      cfg.Storage.S3Bucket,
			Region:      cfg.Storage.S3Region,
			UseSSL:      cfg.Storage.S3UseSSL,
			UploadTTL:   cfg.Storage.UploadURLExpiry,
			DownloadTTL: cfg.Storage.DownloadURLExpiry,
		})
	}
	store, err := local.New(local.Options{
		Root:          cfg.Storage.LocalPath,
		BaseURL:       cfg.App.ServerBaseURL,
		SigningSecret: cfg.Storage.SigningSecret,
		UploadTTL:     cfg.Storage.UploadURLExpiry,
	})
	if err != nil {
		return nil, err
	}
	app.localStore = store
	return store, nil
}

func newChatBus(ctx context.Context, cfg *config.Config, logg *logger.Logger, market *metrics.MarketplaceMetrics, app *application) error {
	app.hub = chat.NewHub(cfg.Chat.OutboundBacklog, market, logg)

	if cfg.Chat.Bus == config.ChatBusRedis {
		bus, err := chat.NewRedisBus(app.redis, logg)
		if err != nil {
			return err
		}
		app.bus = bus
	} else {
		app.bus = chat.NewLocalBus()
	}

	busCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	app.cancelBus = cancel
	return app.bus.Subscribe(busCtx, chat.HubHandler(app.hub))
}

func newServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, gateway storage.Gateway, market *metrics.MarketplaceMetrics, app *application) error {
	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)
	assetRepo := assets.NewRepository(conn)
	productRepo := products.NewRepository(conn)

	var err error
	app.assets, err = assets.NewService(dbClient, assetRepo, gateway, market, logg)
	if err != nil {
		return fmt.Errorf("assets service: %w", err)
	}

	app.products, err = products.NewService(products.ServiceParams{
		Tx:       dbClient,
		Repo:     productRepo,
		Assets:   assetRepo,
		Users:    userRepo,
		Storage:  gateway,
		ARAssets: app.assets,
		Metrics:  market,
		Logger:   logg,
	})
	if err != nil {
		return fmt.Errorf("products service: %w", err)
	}

	app.chat, err = chat.NewService(chat.ServiceParams{
		Tx:            dbClient,
		Repo:          chat.NewRepository(conn),
		Products:      productRepo,
		Assets:        assetRepo,
		Users:         userRepo,
		Storage:       gateway,
		Bus:           app.bus,
		MaxImageBytes: cfg.Chat.MaxImageBytes(),
		Metrics:       market,
		Logger:        logg,
	})
	if err != nil {
		return fmt.Errorf("chat service: %w", err)
	}

	authParams := auth.ServiceParams{
		Tx:            dbClient,
		Users:         userRepo,
		RefreshTokens: auth.NewRefreshTokenRepository(conn),
		Products:      productRepo,
		Unread:        app.chat,
		JWTConfig:     cfg.JWT,
		AuthConfig:    cfg.Auth,
		Logger:        logg,
	}
	if cfg.Auth.GoogleEnabled() {
		authParams.Verifier = auth.NewGoogleVerifier(cfg.Auth)
	}
	app.auth, err = auth.NewService(authParams)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	var cache ai.Cache = ai.NewMemoryCache()
	if app.redis != nil {
		cache = ai.NewRedisCache(app.redis)
	}
	aiParams := ai.ServiceParams{
		Config:  cfg.AI,
		Cache:   cache,
		Metrics: market,
		Logger:  logg,
	}
	if cfg.AI.Enabled() {
		aiParams.Client = ai.NewOpenAIClient(cfg.AI)
	}
	if app.localStore != nil {
		aiParams.Thumbnails = app.localStore
	}
	app.ai, err = ai.NewService(aiParams)
	if err != nil {
		return fmt.Errorf("ai service: %w", err)
	}
	return nil
}
