package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/betplatform/internal/broker"
	"github.com/nkiryanov/betplatform/internal/cache"
	"github.com/nkiryanov/betplatform/internal/db"
	"github.com/nkiryanov/betplatform/internal/handlers"
	"github.com/nkiryanov/betplatform/internal/logger"
	"github.com/nkiryanov/betplatform/internal/metrics"
	"github.com/nkiryanov/betplatform/internal/repository/postgres"
	"github.com/nkiryanov/betplatform/internal/service/auth"
	"github.com/nkiryanov/betplatform/internal/service/betting"
	"github.com/nkiryanov/betplatform/internal/service/dispatcher"
	"github.com/nkiryanov/betplatform/internal/service/event"
	"github.com/nkiryanov/betplatform/internal/service/wallet"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	logger logger.Logger

	server        *http.Server
	metricsServer *http.Server          // nil if disabled
	dispatcher    *dispatcher.Dispatcher // nil if disabled

	// Released on Close
	closers []func() error
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	app := &ServerApp{logger: l}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app.closers = append(app.closers, func() error { pool.Close(); return nil })

	// Redis is optional: without it retried requests are not deduplicated
	var rdb *redis.Client
	var idempotency *cache.IdempotencyStore
	if c.RedisAddr != "" {
		rdb, err = cache.Connect(ctx, c.RedisAddr)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, rdb.Close)
		idempotency = cache.NewIdempotencyStore(rdb, cache.DefaultTTL)
	} else {
		l.Warn("Redis address not set, idempotency keys are ignored")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Initialize services
	storage := postgres.NewStorage(pool)

	verifier, err := auth.NewVerifier(auth.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token verifier. Err: %w", err)
	}
	walletService := wallet.NewService(storage, m, l)
	eventService := event.NewService(storage, m, l)
	eventService.BettingWindow = c.BettingWindow
	bettingService := betting.NewService(storage, m, l)

	deps := handlers.Deps{
		Wallet:  walletService,
		Events:  eventService,
		Betting: bettingService,
		Tokens:  verifier,
		Metrics: m,
	}
	// Keep interface nil when store is not configured
	if idempotency != nil {
		deps.Idempotency = idempotency
	}

	app.server = &http.Server{
		Addr:              c.ListenAddr,
		Handler:           handlers.NewRouter(deps, l),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if c.MetricsAddr != "" {
		app.metricsServer = metrics.NewServer(c.MetricsAddr, reg, health(pool, rdb))
	}

	// Outbox stays in the database until a broker is configured
	if len(c.KafkaBrokers) > 0 {
		publisher, err := broker.NewKafkaPublisher(c.KafkaBrokers)
		if err != nil {
			return nil, fmt.Errorf("error while creating kafka publisher. Err: %w", err)
		}
		app.closers = append(app.closers, publisher.Close)
		app.dispatcher = dispatcher.New(dispatcher.Config{}, storage.Outbox(), publisher, m, l)
	} else {
		l.Warn("Kafka brokers not set, outbox messages are not dispatched")
	}

	return app, nil
}

// Run serves API, metrics and dispatches outbox until ctx is done or any of them fails
func (s *ServerApp) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return serve(ctx, s.server, s.logger.With("server", "api"))
	})

	if s.metricsServer != nil {
		g.Go(func() error {
			return serve(ctx, s.metricsServer, s.logger.With("server", "metrics"))
		})
	}

	if s.dispatcher != nil {
		g.Go(func() error {
			<-s.dispatcher.Dispatch(ctx)
			return nil
		})
	}

	return g.Wait()
}

// Close releases connections in reverse order
func (s *ServerApp) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("Failed to release resource", "error", err)
		}
	}
	s.closers = nil
}

// serve starts http server and closes it gracefully on context cancellation
func serve(ctx context.Context, srv *http.Server, l logger.Logger) error {
	served := make(chan error, 1)

	go func() {
		l.Info("Starting server", "address", srv.Addr)
		served <- srv.ListenAndServe()
	}()

	select {
	case err := <-served:
		return fmt.Errorf("server %s stopped: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(timeoutCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		l.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		_ = srv.Close()
	}

	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	l.Info("HTTP server stopped")
	return nil
}

func health(pool *pgxpool.Pool, rdb *redis.Client) metrics.HealthFunc {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
