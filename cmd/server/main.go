// @title Cafe POS API
// @version 1.0
// @description Order ledger, kitchen stages, payment settlement and cash sessions.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/cafe-pos/config"
	"github.com/d60-Lab/cafe-pos/internal/api/handler"
	"github.com/d60-Lab/cafe-pos/internal/api/router"
	"github.com/d60-Lab/cafe-pos/internal/catalog"
	"github.com/d60-Lab/cafe-pos/internal/repository"
	"github.com/d60-Lab/cafe-pos/internal/service"
	"github.com/d60-Lab/cafe-pos/pkg/broker"
	"github.com/d60-Lab/cafe-pos/pkg/database"
	"github.com/d60-Lab/cafe-pos/pkg/logger"
	"github.com/d60-Lab/cafe-pos/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.L().Sync() }()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	store := repository.NewStore(db)
	defer func() { _ = store.Close() }()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, catalog reads go to the database", zap.Error(err))
	}

	pub, err := broker.New(cfg.Broker, rdb)
	if err != nil {
		return fmt.Errorf("init broker: %w", err)
	}
	defer func() { _ = pub.Close() }()

	lookup := catalog.New(store.Products, store.Terminals, rdb, cfg.Redis.CatalogTTL)
	opts := []service.Option{
		service.WithRetryAttempts(cfg.Order.RetryAttempts),
		service.WithSessionScope(cfg.Session.Scope),
	}
	h := handler.NewHandler(store,
		service.NewOrderService(store, lookup, opts...),
		service.NewKitchenService(store, lookup, opts...),
		service.NewPaymentService(store, lookup, opts...),
		service.NewSessionService(store, lookup, opts...),
	)
	relay := service.NewOutboxRelay(store.Outbox, pub, cfg.Outbox.Workers, cfg.Outbox.BatchSize, cfg.Outbox.PollInterval)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.Setup(cfg, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
