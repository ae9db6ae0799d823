package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/productfeed/api/controllers"
	"github.com/angelmondragon/productfeed/api/middleware"
	"github.com/angelmondragon/productfeed/internal/sessions"
	"github.com/angelmondragon/productfeed/pkg/config"
	"github.com/angelmondragon/productfeed/pkg/logger"
	"github.com/angelmondragon/productfeed/pkg/redis"
)

type redisPinger interface {
	Ping(context.Context) error
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// NewRouter wires the session API, health checks and metrics. redisClient may
// be nil, which disables the readiness ping and session creation limits.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	registry *sessions.Registry,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
) http.Handler {
	var (
		pinger  redisPinger
		limiter rateLimiter
	)
	if redisClient != nil {
		pinger = redisClient
		limiter = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	createPolicy := middleware.NewRateLimitPolicy(
		"session_create",
		cfg.Sessions.CreateWindow,
		cfg.Sessions.CreateLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pinger))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.With(middleware.RateLimit(createPolicy, limiter, logg)).Post("/", controllers.CreateSession(registry, logg))

		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", controllers.GetSession(registry, logg))
			r.Delete("/", controllers.DeleteSession(registry, logg))
			r.Post("/more", controllers.NeedMore(registry, logg))
			r.Post("/sort", controllers.SortSession(registry, logg))
			r.Delete("/sort", controllers.ClearSort(registry, logg))
			r.Post("/retry", controllers.RetrySession(registry, logg))
		})
	})

	return r
}
