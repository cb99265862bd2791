package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"beacon/internal/collector"
	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/filtering"
	"beacon/internal/logger"
	"beacon/internal/profile"
	"beacon/internal/profile/provider"
	"beacon/internal/store"
	"beacon/pkg/bootstrap"
	"beacon/pkg/circuitbreaker"
	"beacon/pkg/health"
	"beacon/pkg/logging"
	"beacon/pkg/metrics"
	"beacon/pkg/ratelimit"
	"beacon/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	mongoClient    *mongo.Client
	postgresDB     *sql.DB
	service        collector.Service
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("collector-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	initCtx := logging.WithServiceName(ctx, "collector-service")

	if err := a.initRedis(ctx); err != nil {
		a.Logger.WarnwCtx(initCtx, "Redis initialization failed, profile cache disabled",
			"error", err,
		)
	}

	if err := a.initMongoDB(ctx); err != nil {
		a.Logger.WarnwCtx(initCtx, "MongoDB initialization failed, MongoDB provider will be disabled",
			"error", err,
		)
	}

	if err := a.initPostgreSQL(ctx); err != nil {
		a.Logger.WarnwCtx(initCtx, "PostgreSQL initialization failed, PostgreSQL provider will be disabled",
			"error", err,
		)
	}

	if err := a.InitBroker("collector-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initService(); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "collector-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterCollectorMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	return a.initHTTPServer()
}

func (a *App) initRedis(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	return nil
}

func (a *App) initMongoDB(ctx context.Context) error {
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient
	return nil
}

func (a *App) initPostgreSQL(ctx context.Context) error {
	postgresDB, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.postgresDB = postgresDB
	return nil
}

func (a *App) initService() error {
	filters, err := filtering.NewService(a.Config.Filtering.Rules, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to compile filter rules: %w", err)
	}

	profiles := profile.NewService(a.profileCache(), a.profileBacking(), a.Logger)

	a.service = collector.NewService(
		store.NewRegistry(),
		profiles,
		filters,
		a.Producer,
		a.Config,
		a.Logger,
	)
	return nil
}

func (a *App) profileCache() *provider.CacheProvider {
	if a.redis == nil {
		return nil
	}
	ttl := time.Duration(a.Config.Profile.CacheTTLSeconds) * time.Second
	return provider.NewCacheProvider(a.redis, ttl)
}

// profileBacking picks the configured database provider, wrapped in a circuit
// breaker when one is enabled. A misconfigured or unavailable backend leaves
// the service running on cache and anonymous profiles.
func (a *App) profileBacking() provider.UserProvider {
	var backing provider.UserProvider

	switch a.Config.Profile.Provider {
	case constants.ProviderNameMongoDB:
		if a.mongoClient != nil {
			backing = provider.NewMongoProvider(
				a.mongoClient,
				a.Config.Database.MongoDB.Database,
				a.Config.Profile.MongoCollection,
			)
		}
	case constants.ProviderNamePostgreSQL:
		if a.postgresDB != nil {
			backing = provider.NewPostgresProvider(a.postgresDB, a.Config.Profile.PostgresTable)
		}
	}
	if backing == nil {
		return nil
	}

	if a.Config.CircuitBreaker.Enabled {
		cbCfg := circuitbreaker.DefaultConfig(backing.Name())
		if a.Config.CircuitBreaker.MaxRequests > 0 {
			cbCfg.MaxRequests = a.Config.CircuitBreaker.MaxRequests
		}
		if a.Config.CircuitBreaker.Interval > 0 {
			cbCfg.Interval = a.Config.CircuitBreaker.Interval
		}
		if a.Config.CircuitBreaker.Timeout > 0 {
			cbCfg.Timeout = a.Config.CircuitBreaker.Timeout
		}
		if a.Config.CircuitBreaker.FailureRatio > 0 {
			cbCfg.FailureRatio = a.Config.CircuitBreaker.FailureRatio
		}
		if a.Config.CircuitBreaker.MinimumRequests > 0 {
			cbCfg.MinimumRequests = a.Config.CircuitBreaker.MinimumRequests
		}
		backing = provider.WrapWithCircuitBreaker(backing, cbCfg)
	}
	return backing
}

func (a *App) initHTTPServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("collector-service"))
	}

	if a.Config.RateLimit.Enabled {
		rlCfg := ratelimit.DefaultConfig()
		if a.Config.RateLimit.RPS > 0 {
			rlCfg.RPS = a.Config.RateLimit.RPS
		}
		if a.Config.RateLimit.Burst > 0 {
			rlCfg.Burst = a.Config.RateLimit.Burst
		}
		router.Use(ratelimit.Middleware(rlCfg))
	}

	healthRegistry := health.NewCheckerRegistry()
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}
	if a.postgresDB != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.postgresDB))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	collector.NewHandler(a.service, a.Logger).RegisterRoutes(router)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	inputTopic := a.Config.Broker.Kafka.InputTopic
	if inputTopic == "" {
		inputTopic = constants.DefaultInputTopic
	}

	handler := collector.NewBrokerHandler(a.service, a.Logger)
	g.Go(func() error {
		consumeCtx := logging.WithServiceName(gCtx, "collector-service")
		a.Logger.InfowCtx(consumeCtx, "Starting raw event consumer",
			"topic", inputTopic,
		)
		return a.Consumer.Consume(gCtx, inputTopic, handler)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "collector-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down collector service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error
		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer shutdown error: %w", err))
			}
		}
		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.postgresDB, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
