package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/scanmarket-backend/api/controllers"
	"github.com/angelmondragon/scanmarket-backend/api/middleware"
	"github.com/angelmondragon/scanmarket-backend/internal/ai"
	"github.com/angelmondragon/scanmarket-backend/internal/assets"
	"github.com/angelmondragon/scanmarket-backend/internal/auth"
	"github.com/angelmondragon/scanmarket-backend/internal/chat"
	"github.com/angelmondragon/scanmarket-backend/internal/idempotency"
	"github.com/angelmondragon/scanmarket-backend/internal/products"
	"github.com/angelmondragon/scanmarket-backend/pkg/config"
	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
	"github.com/angelmondragon/scanmarket-backend/pkg/storage/local"
)

// rateLimiter mirrors the counter surface the auth rate limiter needs.
type rateLimiter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Deps carries everything the HTTP surface is wired to. Nil services answer
// with an internal error; nil optional infrastructure disables its feature.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	// Ready lists the dependencies pinged by /health/ready.
	Ready map[string]controllers.Pinger
	// RateLimiter backs auth throttling; nil disables it.
	RateLimiter rateLimiter
	Idempotency *idempotency.Guard

	Registry    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Auth     auth.Service
	Assets   assets.Service
	Products products.Service
	Chat     chat.Service
	Hub      *chat.Hub
	AI       ai.Service

	// LocalStorage serves signed PUT/GET under /storage when objects live on disk.
	// The routes exist only in local and dev deployments.
	LocalStorage *local.Store
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)
	if d.HTTPMetrics != nil {
		r.Use(middleware.Metrics(d.HTTPMetrics))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	loginLimit := middleware.AuthRateLimit(loginPolicy, d.RateLimiter, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.Ready, logg))
	})

	if cfg.Metrics.Enabled && d.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	if d.LocalStorage != nil && (cfg.App.IsLocal() || cfg.App.IsDev()) {
		r.Route("/storage", func(r chi.Router) {
			r.Put("/*", controllers.LocalStoragePut(d.LocalStorage, assets.MaxAssetFileBytes, logg))
			r.Get("/*", controllers.LocalStorageGet(d.LocalStorage, logg))
		})
	}

	socketOpts := controllers.ChatSocketOptions{
		JWT:            cfg.JWT,
		PingInterval:   cfg.Chat.PingInterval,
		AllowedOrigins: cfg.App.AllowedOrigins(),
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/auth/providers", controllers.AuthProviders(d.Auth, logg))
		r.With(loginLimit).Get("/auth/oauth/{provider}/callback", controllers.AuthCallback(d.Auth, logg))
		r.With(loginLimit).Post("/auth/google", controllers.AuthGoogle(d.Auth, logg))
		r.Post("/auth/refresh", controllers.AuthRefresh(d.Auth, logg))
		r.Post("/auth/logout", controllers.AuthLogout(d.Auth, logg))

		// Socket auth travels in the query string and is checked after the
		// upgrade so refusals can carry close codes.
		r.Get("/chats/{room_id}", controllers.ChatSocket(d.Chat, d.Hub, socketOpts, logg))

		r.Get("/products/{id}/ar-asset", controllers.GetProductARAsset(d.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/products", controllers.ListProducts(d.Products, logg))
			r.Get("/products/{id}", controllers.GetProduct(d.Products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			if d.Idempotency != nil {
				r.Use(middleware.Idempotency(d.Idempotency, logg))
			}

			r.Get("/auth/me", controllers.AuthMe(d.Auth, logg))
			r.Patch("/me", controllers.MeUpdate(d.Auth, logg))
			r.Get("/me/summary", controllers.MeSummary(d.Auth, logg))
			r.Get("/me/purchases", controllers.MePurchases(d.Products, logg))

			r.Post("/capture-sessions", controllers.CreateCaptureSession(d.Assets, logg))
			r.Post("/model-assets/uploads/init", controllers.InitUpload(d.Assets, logg))
			r.Post("/model-assets/uploads/complete", controllers.CompleteUpload(d.Assets, logg))
			r.Get("/model-assets/{id}", controllers.GetAsset(d.Assets, logg))

			r.Post("/products/publish", controllers.PublishProduct(d.Products, logg))
			r.Patch("/products/{id}", controllers.UpdateProduct(d.Products, logg))
			r.Delete("/products/{id}", controllers.DeleteProduct(d.Products, logg))
			r.Patch("/products/{id}/status", controllers.UpdateProductStatus(d.Products, logg))
			r.Post("/products/{id}/like", controllers.ToggleLike(d.Products, logg))
			r.Post("/products/{id}/purchase", controllers.PurchaseProduct(d.Products, logg))
			r.Post("/products/{id}/chat-rooms", controllers.CreateChatRoom(d.Chat, logg))

			r.Get("/chat-rooms", controllers.ListChatRooms(d.Chat, logg))
			r.Get("/chat-rooms/{id}/messages", controllers.ListChatMessages(d.Chat, logg))
			r.Post("/chat-rooms/{id}/messages", controllers.SendChatMessage(d.Chat, logg))
			r.Post("/chat-rooms/{id}/read", controllers.MarkChatRoomRead(d.Chat, logg))
			r.Post("/chat-images", controllers.UploadChatImage(d.Chat, cfg.Chat.MaxImageBytes(), logg))

			r.Post("/ai/suggest-listing", controllers.SuggestListing(d.AI, logg))
		})
	})

	return r
}
