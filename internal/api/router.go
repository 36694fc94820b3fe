package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/ripple-community/pebs-api/internal/api/handler"
	"github.com/ripple-community/pebs-api/internal/api/middleware"
	"github.com/ripple-community/pebs-api/internal/api/spec"
	"github.com/ripple-community/pebs-api/internal/config"
	"github.com/ripple-community/pebs-api/internal/idempotency"
	"github.com/ripple-community/pebs-api/internal/presence"
	"github.com/ripple-community/pebs-api/internal/repository"
	"github.com/ripple-community/pebs-api/internal/service"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *pgxpool.Pool
	repo     *repository.Repository
	idem     *idempotency.Store
	redis    redis.Cmdable
	notifier *service.NotificationService
	streamer presence.Streamer
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, repo *repository.Repository,
	idem *idempotency.Store, redisClient redis.Cmdable,
	notifier *service.NotificationService, streamer presence.Streamer) *Router {
	return &Router{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		repo:     repo,
		idem:     idem,
		redis:    redisClient,
		notifier: notifier,
		streamer: streamer,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	// Services
	store := repository.NewStore(api.db)
	accountSvc := service.NewAccountService(api.repo)
	exchangeSvc := service.NewExchangeService(api.repo, store, api.notifier)
	activitySvc := service.NewActivityService(api.repo, api.notifier)

	// Handlers
	authHandler := handler.NewAuthHandler(accountSvc)
	userHandler := handler.NewUserHandler(accountSvc)
	exchangeHandler := handler.NewExchangeHandler(exchangeSvc)
	notificationHandler := handler.NewNotificationHandler(api.notifier)
	activityHandler := handler.NewActivityHandler(activitySvc)
	eventsHandler := handler.NewEventsHandler(api.streamer)
	healthHandler := handler.NewHealthHandler(api.db, api.redis)

	// Operational surface
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Method("GET", "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Post("/v1/auth/register", authHandler.Register)
		r.Post("/v1/auth/login", authHandler.Login)

		r.Get("/v1/users", userHandler.List)
		r.Get("/v1/users/by-username/{username}", userHandler.GetByUsername)
		r.Get("/v1/community/support-needed", userHandler.SupportNeeded)

		r.Get("/v1/exchanges", exchangeHandler.List)
		r.Get("/v1/exchanges/stats", exchangeHandler.Stats)
		r.Get("/v1/exchanges/stats/daily", exchangeHandler.StatsDaily)
		r.Get("/v1/exchanges/user/{userId}", exchangeHandler.ForUser)
		r.Get("/v1/exchanges/{id}", exchangeHandler.Get)

		r.Get("/v1/community/activities", activityHandler.List)
		r.With(middleware.OptionalAuthMiddleware).Get("/v1/community/activities/{id}", activityHandler.Get)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Get("/v1/auth/me", authHandler.Me)
		r.Put("/v1/auth/profile", authHandler.UpdateProfile)
		r.Delete("/v1/auth/account", userHandler.Deactivate)

		r.With(middleware.IdempotencyMiddleware(api.idem, api.logger)).Post("/v1/exchanges", exchangeHandler.Create)
		r.Put("/v1/exchanges/{id}/confirm", exchangeHandler.Confirm)
		r.Get("/v1/exchanges/recent", exchangeHandler.Recent)

		r.Get("/v1/notifications", notificationHandler.List)
		r.Put("/v1/notifications/read-all", notificationHandler.MarkAllRead)
		r.Put("/v1/notifications/{id}/read", notificationHandler.MarkRead)

		r.Post("/v1/community/activities", activityHandler.Create)
		r.Post("/v1/community/activities/{id}/responses", activityHandler.Respond)
		r.Put("/v1/community/activities/{id}/status", activityHandler.SetStatus)

		r.Get("/v1/events", eventsHandler.Stream)
	})

	return r
}
