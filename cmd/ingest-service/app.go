package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"wisegate/internal/config"
	"wisegate/internal/constants"
	"wisegate/internal/dashboard"
	"wisegate/internal/logger"
	"wisegate/internal/normalize"
	"wisegate/internal/pipeline"
	"wisegate/internal/realtime"
	"wisegate/internal/storage"
	"wisegate/pkg/bootstrap"
	"wisegate/pkg/health"
	"wisegate/pkg/logging"
	"wisegate/pkg/metrics"
	"wisegate/pkg/middleware"
	"wisegate/pkg/ratelimit"
	"wisegate/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redis          *redis.Client
	router         *normalize.Router
	dispatcher     *pipeline.Dispatcher
	hub            *realtime.Hub
	recent         *realtime.Recent
	tracerProvider *tracing.Provider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	router, err := buildRouter(a.Config.Families)
	if err != nil {
		return fmt.Errorf("failed to build device families: %w", err)
	}
	a.router = router

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitBroker(constants.ServiceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initPipeline(ctx); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	tp, err := tracing.Init(ctx, a.Config.Tracing, constants.ServiceName, a.Config.Broker.Type)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterIngestMetrics()
	metrics.RegisterRealtimeMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterDashboardMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	client, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		initCtx := logging.WithServiceName(ctx, constants.ServiceName)
		a.Logger.WarnwCtx(initCtx, "Redis unavailable, pub/sub relay disabled", "error", err)
		return nil
	}
	a.redis = client
	return nil
}

func (a *App) initPipeline(ctx context.Context) error {
	pgSink, err := storage.NewPostgresSink(a.db, a.router.Tables(), a.Logger)
	if err != nil {
		return err
	}
	sink := storage.NewCircuitBreakerSink(pgSink, a.Config.CircuitBreaker)

	rt := a.Config.Realtime
	a.hub = realtime.NewHub(a.Logger)
	a.recent = realtime.NewRecent(rt.RecentSize)

	fanout := realtime.NewFanout(a.Logger)
	fanout.Add("websocket", a.hub)
	if a.redis != nil {
		fanout.Add("redis", realtime.NewRedisNotifier(a.redis, rt.RedisPrefix))
	}
	if a.Producer != nil && rt.KafkaTopic != "" {
		fanout.Add("kafka", realtime.NewKafkaNotifier(a.Producer, rt.KafkaTopic))
	}

	merger := normalize.NewMerger(normalize.NewPartialCache(), normalize.NewSignalCache())
	a.dispatcher = pipeline.NewDispatcher(a.router, normalize.NewNormalizer(merger), sink, fanout, pipeline.Config{
		RecordChannel: rt.RecordChannel,
		LogChannel:    rt.LogChannel,
	}, a.Logger)
	a.dispatcher.SetRawRecorder(a.recent)

	initCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(initCtx, "Pipeline ready",
		"families", len(a.router.Profiles()),
		"tables", len(a.router.Tables()),
		"notifiers", fanout.Len(),
	)
	return nil
}

func (a *App) initHTTPServer(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.Config.Management.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromConfig(a.Config.Management.RateLimit)
		router.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	kind, table, err := dashboardSource(a.router, a.Config.Dashboard.Family)
	if err != nil {
		return err
	}
	handler := dashboard.NewHandler(
		storage.NewQueryRepository(a.db),
		dashboard.Source{Table: table, Kind: kind},
		a.Config.Dashboard.Limit,
		a.recent,
		a.hub.ServeWS,
		a.Logger,
	)
	handler.RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	healthRegistry.Register(health.NewBusChecker(a.Config.Broker.Type, a.Consumer))
	if a.redis != nil {
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.redis))
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

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
	return nil
}

func (a *App) subscriptions() []string {
	if a.Config.Broker.Type == constants.BusKafka {
		return a.Config.Broker.Kafka.Topics
	}
	return a.router.Subscriptions()
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.hub.Run(gCtx)
	})

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

	topics := a.subscriptions()
	g.Go(func() error {
		consumeCtx := logging.WithServiceName(gCtx, constants.ServiceName)
		a.Logger.InfowCtx(consumeCtx, "Starting bus consumer", "bus", a.Config.Broker.Type, "topics", topics)
		return a.Consumer.Consume(gCtx, topics, a.dispatcher.Handle)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down ingest service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(a.redis, a.db)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
