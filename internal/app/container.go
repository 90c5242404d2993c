package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"shipment-tracker/internal/cache"
	"shipment-tracker/internal/config"
	"shipment-tracker/internal/distributor"
	"shipment-tracker/internal/http/handlers"
	"shipment-tracker/internal/http/middleware/ratelimit"
	"shipment-tracker/internal/http/pprofserver"
	"shipment-tracker/internal/http/router"
	"shipment-tracker/internal/logx"
	"shipment-tracker/internal/metrics"
	"shipment-tracker/internal/ports/trackingtx"
	"shipment-tracker/internal/repository"
	"shipment-tracker/internal/repository/memstore"
	"shipment-tracker/internal/service/ingest"
	"shipment-tracker/internal/service/lane"
	"shipment-tracker/internal/service/route"
	"shipment-tracker/internal/service/shipment"
	"shipment-tracker/internal/service/trackingcode"
	"shipment-tracker/internal/transport/kafka"
)

const serviceName = "shipment-tracker"

type dbConnectFunc func(context.Context, logx.Logger, string, int, time.Duration) (*pgxpool.Pool, error)

type redisConnectFunc func(ctx context.Context, addr, password string, db int) (*redis.Client, error)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect    dbConnectFunc
	redisConnect redisConnectFunc
	loadConfig   func() (*config.Config, error)
	registerer   prometheus.Registerer
	logger       logx.Logger
	logFatalf    func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect:    connectDbWithRetry,
		redisConnect: cache.NewRedisClient,
		loadConfig:   config.Load,
		registerer:   prometheus.DefaultRegisterer,
		logFatalf:    log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithRedisConnect sets the Redis connection function
func (b *ContainerBuilder) WithRedisConnect(fn redisConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.redisConnect = fn
	}
	return b
}

// WithConfig replaces environment loading with a fixed config.
func (b *ContainerBuilder) WithConfig(cfg *config.Config) *ContainerBuilder {
	if cfg != nil {
		b.loadConfig = func() (*config.Config, error) { return cfg, nil }
	}
	return b
}

// WithRegisterer sets where collectors are registered.
func (b *ContainerBuilder) WithRegisterer(reg prometheus.Registerer) *ContainerBuilder {
	if reg != nil {
		b.registerer = reg
	}
	return b
}

// WithLogger replaces the JSON process logger.
func (b *ContainerBuilder) WithLogger(logger logx.Logger) *ContainerBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds and returns a new dig container
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b.logger, b.loadConfig); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerMetrics(container, b.registerer); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if err := registerStorage(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := registerService(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if err := registerCache(container, b.redisConnect); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if err := registerKafka(container); err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds and returns a new dig container
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

// registerCore provides ctx, config and the logger. A nil logger means one
// is built from the configured level.
func registerCore(container *dig.Container, ctx context.Context, logger logx.Logger, load func() (*config.Config, error)) error {
	return provideAll(container,
		func() context.Context { return ctx },
		load,
		func(cfg *config.Config) logx.Logger {
			if logger != nil {
				return logger
			}
			return NewLogger(cfg.LogLevel)
		},
	)
}

type metricsOut struct {
	dig.Out
	Tracking  *metrics.Tracking
	RateLimit prometheus.Counter `name:"rate_limit_exceeded_total"`
}

func registerMetrics(container *dig.Container, reg prometheus.Registerer) error {
	provider := func() (metricsOut, error) {
		m := metrics.NewTracking()
		limited := metrics.NewRateLimitExceededTotal()
		for _, c := range append(m.Collectors(), limited) {
			if err := reg.Register(c); err != nil {
				return metricsOut{}, err
			}
		}
		return metricsOut{Tracking: m, RateLimit: limited}, nil
	}
	return provideAll(container, provider)
}

// registerStorage provides the pool (nil for in-memory storage) and the store over it.
func registerStorage(container *dig.Container, dbConnect dbConnectFunc) error {
	providerPool := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (*pgxpool.Pool, error) {
		if cfg.Storage == config.StorageMemory {
			return nil, nil
		}
		pool, err := dbConnect(ctx, logger, cfg.DB.DSN(), 10, time.Second)
		if err != nil {
			return nil, err
		}
		if cfg.DB.AutoMigrate {
			if err := repository.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("db schema applied")
		}
		return pool, nil
	}
	providerStore := func(cfg *config.Config, pool *pgxpool.Pool, logger logx.Logger) trackingtx.Store {
		if pool == nil {
			logger.Warn("using in-memory storage, data is lost on restart")
			return memstore.New()
		}
		return repository.NewStore(pool)
	}
	return provideAll(container, providerPool, providerStore)
}

func registerService(container *dig.Container) error {
	return provideAll(container,
		lane.New,
		func(cfg *config.Config, m *metrics.Tracking, logger logx.Logger) *distributor.Hub {
			return distributor.NewHub(cfg.Distributor.Buffer, m, logger)
		},
		func(store trackingtx.Store, cfg *config.Config, logger logx.Logger) *route.Recorder {
			return route.NewRecorder(store, route.Config{
				MinDistanceMeters: cfg.Tracking.WaypointDistanceMeters,
				MinInterval:       cfg.Tracking.WaypointInterval,
			}, cfg.Tracking.OperationTimeout, logger)
		},
		func(store trackingtx.Store, cfg *config.Config, logger logx.Logger) *trackingcode.Registry {
			return trackingcode.NewRegistry(store, nil, cfg.Tracking.OperationTimeout, logger)
		},
		func(
			store trackingtx.Store,
			lanes *lane.Lanes,
			routes *route.Recorder,
			codes *trackingcode.Registry,
			hub *distributor.Hub,
			m *metrics.Tracking,
			cfg *config.Config,
			logger logx.Logger,
		) *shipment.Service {
			return shipment.NewService(shipment.Deps{
				Store:     store,
				Lanes:     lanes,
				Routes:    routes,
				Codes:     codes,
				Publisher: hub,
				Metrics:   m,
				Logger:    logger,
			}, cfg.Tracking.FixFreshness, cfg.Tracking.OperationTimeout)
		},
		func(
			store trackingtx.Store,
			lanes *lane.Lanes,
			routes *route.Recorder,
			hub *distributor.Hub,
			m *metrics.Tracking,
			cfg *config.Config,
			logger logx.Logger,
		) *ingest.Pipeline {
			return ingest.NewPipeline(ingest.Deps{
				Store:     store,
				Lanes:     lanes,
				Routes:    routes,
				Publisher: hub,
				Metrics:   m,
				Logger:    logger,
			}, cfg.Tracking.ClockSkew, cfg.Tracking.OperationTimeout)
		},
	)
}

// registerCache provides the Redis client and snapshot cache, both nil when
// Redis is not configured, and the reader the HTTP layer serves snapshots from.
func registerCache(container *dig.Container, redisConnect redisConnectFunc) error {
	providerClient := func(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
		rdb, err := redisConnect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		return rdb, nil
	}
	providerCache := func(rdb *redis.Client, svc *shipment.Service, cfg *config.Config, logger logx.Logger) *cache.Shipments {
		if rdb == nil {
			return nil
		}
		return cache.NewShipments(rdb, svc, cfg.Redis.TTL, logger)
	}
	providerReader := func(c *cache.Shipments, svc *shipment.Service) handlers.ShipmentReader {
		if c == nil {
			return svc
		}
		return c
	}
	return provideAll(container, providerClient, providerCache, providerReader)
}

func registerKafka(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config, p *ingest.Pipeline, logger logx.Logger) (*kafka.Consumer, error) {
			k := cfg.Kafka
			return kafka.NewConsumer(logger, k.Brokers, k.GroupID, k.LocationsTopic, p)
		},
		func(cfg *config.Config, m *metrics.Tracking, logger logx.Logger) (*kafka.Producer, error) {
			k := cfg.Kafka
			return kafka.NewProducer(logger, m, k.Brokers, k.EventsTopic)
		},
	)
}

type routerIn struct {
	dig.In
	Logger    logx.Logger
	Base      *handlers.Handlers
	Shipments *handlers.ShipmentHandler
	Locations *handlers.LocationHandler
	Codes     *handlers.TrackingCodeHandler
	Routes    *handlers.RouteHandler
	Streams   *handlers.StreamHandler
	RateLimit *ratelimit.Middleware
}

func newRouter(in routerIn) http.Handler {
	return router.New(router.Deps{
		Logger:    in.Logger,
		Base:      in.Base,
		Shipments: in.Shipments,
		Locations: in.Locations,
		Codes:     in.Codes,
		Routes:    in.Routes,
		Streams:   in.Streams,
		RateLimit: in.RateLimit,
	})
}

type pprofOut struct {
	dig.Out
	Server *http.Server `name:"pprof_server"`
}

// newPprofServer provides the debug listener. Server is nil when PPROF_ADDR is empty.
func newPprofServer(cfg *config.Config) pprofOut {
	p := cfg.Pprof
	return pprofOut{Server: pprofserver.NewServer(pprofserver.Config{Addr: p.Addr, User: p.User, Pass: p.Pass})}
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		// No WriteTimeout: WebSocket streams are long-lived.
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	shipmentHandler := func(
		logger logx.Logger,
		svc *shipment.Service,
		reader handlers.ShipmentReader,
		cfg *config.Config,
	) *handlers.ShipmentHandler {
		return handlers.NewShipmentHandler(logger, handlers.NewShipmentUsecase(svc), reader, cfg.Tracking.PollInterval)
	}
	baseHandlers := func(logger logx.Logger, pool *pgxpool.Pool) *handlers.Handlers {
		h := handlers.New(logger)
		if pool != nil {
			h.WithHealthCheck(pool.Ping)
		}
		return h
	}
	return provideAll(container,
		baseHandlers,
		handlers.NewSnapshotReader,
		handlers.NewIngestUsecase,
		handlers.NewTrackingCodeUsecase,
		handlers.NewRouteUsecase,
		handlers.NewSubscriber,
		shipmentHandler,
		handlers.NewLocationHandler,
		handlers.NewTrackingCodeHandler,
		handlers.NewRouteHandler,
		handlers.NewStreamHandler,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		newRouter,
		serverProvider,
		newPprofServer,
	)
}
