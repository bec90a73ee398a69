package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/cafe-service/internal/cache"
	"github.com/fjod/go_cart/cafe-service/internal/catalog"
	"github.com/fjod/go_cart/cafe-service/internal/config"
	h "github.com/fjod/go_cart/cafe-service/internal/http"
	"github.com/fjod/go_cart/cafe-service/internal/kv"
	applog "github.com/fjod/go_cart/cafe-service/internal/logger"
	"github.com/fjod/go_cart/cafe-service/internal/payment"
	"github.com/fjod/go_cart/cafe-service/internal/poller"
	"github.com/fjod/go_cart/cafe-service/internal/publisher"
	"github.com/fjod/go_cart/cafe-service/internal/repository"
	"github.com/fjod/go_cart/cafe-service/internal/service"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applog.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sqliteRepo *repository.SQLiteRepository
	if cfg.StorageBackend == "sqlite" || cfg.CatalogSource == "sqlite" {
		sqliteRepo, err = repository.NewSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("failed to open sqlite", zap.String("path", cfg.SQLitePath), zap.Error(err))
		}
		defer sqliteRepo.Close()
		if err := sqliteRepo.RunMigrations(); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	store, closeStore, err := openStore(ctx, cfg, sqliteRepo, logger)
	if err != nil {
		logger.Fatal("failed to open cart storage", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	defer closeStore()

	menu, err := loadCatalog(ctx, cfg, sqliteRepo)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.String("source", cfg.CatalogSource), zap.Error(err))
	}
	logger.Info("catalog loaded", zap.String("source", cfg.CatalogSource), zap.Int("products", len(menu.Products())))

	var decider payment.Decider = payment.AlwaysApprove{}
	if cfg.PaymentFailureRate > 0 {
		decider = payment.RandomDecider{FailureRate: cfg.PaymentFailureRate}
	}
	authorizer := payment.NewBreaker(payment.NewSimulated(cfg.PaymentDelay, decider), payment.BreakerSettings{}, logger)

	instanceID := uuid.NewString()
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithPaymentTimeout(cfg.PaymentTimeout),
	}
	if cfg.KafkaEnabled() {
		pub := publisher.NewOrderPublisher(logger, instanceID, cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))
	}
	svc := service.NewCafeService(menu, store, authorizer, opts...)

	if cfg.KafkaEnabled() {
		groupID := cfg.KafkaGroupID
		if groupID == "" {
			groupID = "cafe-service-" + instanceID
		}
		p := poller.NewPoller(svc, logger, poller.Config{
			Brokers:    cfg.KafkaBrokers,
			Topic:      cfg.KafkaTopic,
			GroupID:    groupID,
			InstanceID: instanceID,
		})
		defer p.Close()
		go p.Run(ctx)
		logger.Info("order poller started", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("group_id", groupID), zap.String("instance_id", instanceID))
	}

	router := h.NewRouter(svc, h.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		PaymentTimeout: cfg.PaymentTimeout,
		SecureCookies:  cfg.IsProduction(),
	}, logger)

	// No WriteTimeout: the cart event stream stays open.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("cafe service starting", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func openStore(ctx context.Context, cfg *config.Config, sqliteRepo *repository.SQLiteRepository, logger *zap.Logger) (kv.Store, func(), error) {
	switch cfg.StorageBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
		return cache.NewRedisCache(client, cfg.CartTTL), func() { client.Close() }, nil

	case "mongo":
		db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoRepository(db)
		if err := repo.CreateIndexes(ctx); err != nil {
			logger.Warn("failed to create mongo indexes", zap.Error(err))
		}
		logger.Info("connected to mongodb", zap.String("db", cfg.MongoDBName))
		return repo, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Client().Disconnect(disconnectCtx); err != nil {
				logger.Warn("mongo disconnect failed", zap.Error(err))
			}
		}, nil

	case "sqlite":
		return sqliteRepo, func() {}, nil

	default:
		return cache.NewMemoryCache(), func() {}, nil
	}
}

func loadCatalog(ctx context.Context, cfg *config.Config, sqliteRepo *repository.SQLiteRepository) (*catalog.Catalog, error) {
	switch cfg.CatalogSource {
	case "sqlite":
		return sqliteRepo.LoadCatalog(ctx)
	case "file":
		f, err := os.Open(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return catalog.Load(f)
	default:
		return catalog.Default(), nil
	}
}
