package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/jewel-store/internal/adapter/handler"
	"github.com/rl1809/jewel-store/internal/adapter/metalprice"
	"github.com/rl1809/jewel-store/internal/adapter/notify"
	"github.com/rl1809/jewel-store/internal/adapter/storage"
	"github.com/rl1809/jewel-store/internal/config"
	"github.com/rl1809/jewel-store/internal/core/service"
	"github.com/rl1809/jewel-store/internal/port"
	"github.com/rl1809/jewel-store/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	redisAdapter := storage.NewRedisAdapter(rdb)

	// Alerts
	notifier, closeNotifier := buildNotifier(cfg.Alerts, logger)
	defer closeNotifier()

	// Services
	priceClient := metalprice.NewClient(metalprice.Config{
		BaseURL:          cfg.MetalPrice.BaseURL,
		APIKey:           cfg.MetalPrice.APIKey,
		BaseCurrency:     cfg.MetalPrice.BaseCurrency,
		Timeout:          cfg.MetalPrice.Timeout,
		FailureThreshold: cfg.MetalPrice.FailureThreshold,
		OpenTimeout:      cfg.MetalPrice.OpenTimeout,
	}, logger)
	rates := service.NewMetalRateCache(priceClient, logger, service.WithRateTTL(cfg.MetalPrice.CacheTTL))
	orders := service.NewOrderService(store, redisAdapter, logger)
	carts := service.NewCartService(store, logger)
	recalc := service.NewPriceRecalculator(store, rates, notifier, logger)
	cleaner := service.NewUnverifiedUserCleaner(store, logger)

	// Background jobs
	var locks port.LockRepository
	if cfg.Jobs.DistributedLock {
		locks = redisAdapter
	}
	jobs := scheduler.New(locks, logger)
	jobs.Add(&scheduler.Job{
		Name:     "price-recalculation",
		Interval: cfg.Jobs.PriceRecalcInterval,
		Run: func(ctx context.Context) error {
			_, err := recalc.Run(ctx)
			return err
		},
	})
	jobs.Add(&scheduler.Job{
		Name:     "user-cleanup",
		Interval: cfg.Jobs.UserCleanupInterval,
		Run: func(ctx context.Context) error {
			_, err := cleaner.Run(ctx)
			return err
		},
	})
	jobs.Start(ctx)

	// gRPC server
	if cfg.Payment.CallbackToken == "" {
		logger.Warn("PAYMENT_CALLBACK_TOKEN not set, payment confirmations will be refused")
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(handler.CallbackTokenInterceptor(cfg.Payment.CallbackToken)),
	)
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orders, logger))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	// HTTP server
	httpHandler := handler.NewHTTPHandler(orders, carts, rates, handler.HTTPConfig{
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxBodyBytes,
		CallbackToken:      cfg.Payment.CallbackToken,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed, shutting down", zap.Error(err))
		stop()
	}

	// Graceful shutdown
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	jobs.Wait()
	logger.Info("jobs stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (port.Store, func(), error) {
	switch cfg.Store {
	case config.BackendMongo:
		db, err := storage.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.EnsureMongoIndexes(ctx, db); err != nil {
			db.Client().Disconnect(context.Background())
			return nil, nil, err
		}
		logger.Info("connected to mongodb", zap.String("database", cfg.Mongo.Database))
		return storage.NewMongoAdapter(db), func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			db.Client().Disconnect(ctx)
		}, nil

	default:
		db, err := storage.OpenMySQL(ctx, cfg.MySQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to mysql, migrations applied")
		return storage.NewMySQLAdapter(db), func() { db.Close() }, nil
	}
}

func buildNotifier(cfg config.AlertsConfig, logger *zap.Logger) (port.Notifier, func()) {
	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	closers := []func() error{}

	if len(cfg.KafkaBrokers) > 0 {
		kn := notify.NewKafkaNotifier(cfg.KafkaTopic, cfg.KafkaBrokers...)
		notifiers = append(notifiers, kn)
		closers = append(closers, kn.Close)
		logger.Info("kafka alerts enabled", zap.String("topic", cfg.KafkaTopic))
	}
	if cfg.SendGridAPIKey != "" {
		notifiers = append(notifiers, notify.NewEmailNotifier(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailTo))
		logger.Info("email alerts enabled", zap.String("to", cfg.EmailTo))
	}

	return notifiers, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close notifier", zap.Error(err))
			}
		}
	}
}
