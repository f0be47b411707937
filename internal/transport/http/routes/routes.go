package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/config"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/transport/http/handlers"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/transport/http/middleware"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config       *config.AppConfig
	Logger       *zap.Logger
	RateLimiter  *middleware.RateLimiter
	HTTPMetrics  *middleware.HTTPMetrics
	Registration handlers.Registrar
	Downstreams  []handlers.DownstreamReporter
	Database     DatabaseChecker
	Cache        CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware. A nil Config behaves like an empty
// one: default service name, no CORS and no register rate limit.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config == nil {
		deps.Config = &config.AppConfig{}
	}
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName(deps.Config)))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())
	if len(deps.Config.App.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	}

	healthOptions := []handlers.HealthOption{handlers.WithDownstreams(deps.Downstreams...)}
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/status/downstreams", healthHandler.Downstreams)

		if deps.Registration != nil {
			registrationHandler := handlers.NewRegistrationHandler(deps.Registration)
			registrationHandler.RegisterRoutes(api, buildRegisterMiddlewares(deps)...)
		}
	}

	return r
}

func serviceName(cfg *config.AppConfig) string {
	if cfg.App.Name == "" {
		return "auth-service"
	}
	return cfg.App.Name
}

func buildRegisterMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil {
		return nil
	}

	limit := deps.Config.RateLimit.RegisterMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Hour
	}

	rule := middleware.RateLimitRule{
		Name:       "register_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
