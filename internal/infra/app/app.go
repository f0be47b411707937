package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/port"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/config"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/database"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/downstream"
	kafkainfra "github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/kafka"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/logger"
	redisinfra "github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/redis"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/security"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/serviceclient"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/telemetry"
	postgresrepo "github.com/Mukeshmehta2041/crm-micro-sub001/internal/repository/postgres"
	redisrepo "github.com/Mukeshmehta2041/crm-micro-sub001/internal/repository/redis"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/transport/http/handlers"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/transport/http/middleware"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/transport/http/routes"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/usecase"
)

// writeTimeoutMargin leaves room to encode and flush the response once a registration has finished.
const writeTimeoutMargin = 15 * time.Second

type Application struct {
	cfg          *config.AppConfig
	engine       *gin.Engine
	logger       *zap.Logger
	pool         *pgxpool.Pool
	redis        *redisinfra.Client
	producer     *kafkainfra.Producer
	tracer       *telemetry.TracerProvider
	writeTimeout time.Duration
}

// serverWriteTimeout keeps the HTTP write deadline past the longest a registration can run.
func serverWriteTimeout(registrationBudget time.Duration) time.Duration {
	return registrationBudget + writeTimeoutMargin
}

// stageBudget is the worst case for one saga stage: a create that times out ambiguously followed by
// a retried read-back to verify it.
func stageBudget(s config.ServiceClientSettings) time.Duration {
	cfg := serviceclient.ConfigFromSettings(s)
	return cfg.CallBudget(false) + cfg.CallBudget(true)
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		a.tracer = tp
	}

	metrics, err := telemetry.NewMetrics(telemetry.MetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = redisClient

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	entityCache := redisrepo.NewEntityCache(redisClient.Client(), cfg.Redis.CachePrefix)

	tenantsHTTP := serviceclient.New(serviceclient.ConfigFromSettings(cfg.Downstream.Tenants), log, metrics)
	usersHTTP := serviceclient.New(serviceclient.ConfigFromSettings(cfg.Downstream.Users), log, metrics)

	tenants := downstream.NewTenantClient(tenantsHTTP, downstream.Options{
		Cache:    entityCache,
		CacheTTL: cfg.Redis.CacheTTL,
		Policy:   domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.Downstream.Tenants.DegradationPolicy)),
		Logger:   log,
	})
	users := downstream.NewUserClient(usersHTTP, downstream.Options{
		Cache:    entityCache,
		CacheTTL: cfg.Redis.CacheTTL,
		Policy:   domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.Downstream.Users.DegradationPolicy)),
		Logger:   log,
	})

	repos := postgresrepo.NewRepositories(pool)

	events := a.newEventPublisher()

	compensator := usecase.NewCompensator(tenants, users, repos.Credentials, log).
		WithEvents(events).
		WithMetrics(metrics).
		WithTimeout(cfg.Registration.CompensationTimeout)

	registration := usecase.NewRegistrationService(
		cfg.Registration,
		tenants,
		users,
		repos.Credentials,
		hasher,
		usecase.NewRequestValidator(security.NewPasswordPolicy()),
		compensator,
		log,
	).WithEvents(events).WithMetrics(metrics)

	a.writeTimeout = serverWriteTimeout(registration.Budget())
	for name, ds := range map[string]config.ServiceClientSettings{
		"tenants": cfg.Downstream.Tenants,
		"users":   cfg.Downstream.Users,
	} {
		if need := stageBudget(ds); registration.SagaTimeout() < need {
			log.Warn("registration saga timeout shorter than one ambiguous create and verify",
				zap.String("downstream", name),
				zap.Duration("saga_timeout", registration.SagaTimeout()),
				zap.Duration("stage_budget", need),
			)
		}
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Hour
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "auth:rate-limit",
		TTL:       rateLimitWindow * 2,
	})

	a.engine = routes.Register(routes.Dependencies{
		Config:       cfg,
		Logger:       log,
		RateLimiter:  middleware.NewRateLimiter(rateLimitStore, log),
		HTTPMetrics:  httpMetrics,
		Registration: registration,
		Downstreams:  []handlers.DownstreamReporter{tenantsHTTP, usersHTTP},
		Database:     pool,
		Cache:        redisClient,
	})

	return a, nil
}

func (a *Application) newEventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, logging events instead")
		return kafkainfra.NewLogPublisher(a.cfg.App, a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, logging events instead", zap.Error(err))
		return kafkainfra.NewLogPublisher(a.cfg.App, a.logger)
	}

	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      a.writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases infrastructure in reverse order of construction. Safe on a partially built Application.
func (a *Application) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}
}
