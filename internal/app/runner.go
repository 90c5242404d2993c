package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"shipment-tracker/internal/cache"
	"shipment-tracker/internal/distributor"
	"shipment-tracker/internal/logx"
	"shipment-tracker/internal/transport/kafka"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the service built by the container.
type Runner struct {
	runFn func(*dig.Container) error
}

// NewRunner returns a Runner for the tracking service.
func NewRunner() *Runner {
	return &Runner{runFn: run}
}

// MustRun runs until the container context is done and exits the process on failure.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	logger := NewLogger("")
	_ = container.Invoke(func(l logx.Logger) { logger = l })

	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run failed", logx.Err(err))
		_ = logger.Sync()
		fatal(err)
	}
}

var fatal = func(error) { os.Exit(1) }

type runIn struct {
	dig.In
	Ctx      context.Context
	Logger   logx.Logger
	Server   *http.Server
	Hub      *distributor.Hub
	Pprof    *http.Server     `name:"pprof_server" optional:"true"`
	Pool     *pgxpool.Pool    `optional:"true"`
	Redis    *redis.Client    `optional:"true"`
	Cache    *cache.Shipments `optional:"true"`
	Consumer *kafka.Consumer  `optional:"true"`
	Producer *kafka.Producer  `optional:"true"`
}

func run(container *dig.Container) error {
	return container.Invoke(appRun)
}

// appRun serves HTTP and runs the Kafka and cache workers until ctx is done
// or one of them fails.
func appRun(in runIn) error {
	logger := in.Logger
	defer closeResources(in, logger)

	// Subscribe before serving so no event published after startup is missed.
	var mirror, invalidate *distributor.Subscription
	var err error
	if in.Producer != nil {
		if mirror, err = in.Hub.Subscribe(distributor.AdminScope()); err != nil {
			return err
		}
		defer mirror.Close()
	}
	if in.Cache != nil {
		if invalidate, err = in.Hub.Subscribe(distributor.AdminScope()); err != nil {
			return err
		}
		defer invalidate.Close()
	}

	g, ctx := errgroup.WithContext(in.Ctx)

	g.Go(func() error {
		logger.Info(serviceName+" listening", logx.String("addr", in.Server.Addr))
		if err := in.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if in.Pprof != nil {
		g.Go(func() error {
			logger.Info("pprof listening", logx.String("addr", in.Pprof.Addr))
			if err := in.Pprof.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	if in.Consumer != nil {
		g.Go(func() error { return in.Consumer.Run(ctx) })
	}
	if mirror != nil {
		g.Go(func() error { return in.Producer.Run(ctx, mirror) })
	}
	if invalidate != nil {
		g.Go(func() error { return in.Cache.RunInvalidator(ctx, invalidate) })
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down " + serviceName)
		gracefulShutdown(in.Server, logger, shutdownTimeout)
		if in.Pprof != nil {
			gracefulShutdown(in.Pprof, logger, shutdownTimeout)
		}
		in.Hub.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return in.Ctx.Err()
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("graceful shutdown error", logx.Err(err))
	}
}

func closeResources(in runIn, logger logx.Logger) {
	if err := in.Consumer.Close(); err != nil {
		logger.Error("kafka consumer close error", logx.Err(err))
	}
	if err := in.Producer.Close(); err != nil {
		logger.Error("kafka producer close error", logx.Err(err))
	}
	if in.Redis != nil {
		if err := in.Redis.Close(); err != nil {
			logger.Error("redis close error", logx.Err(err))
		}
	}
	if in.Pool != nil {
		in.Pool.Close()
	}
	_ = logger.Sync()
}
