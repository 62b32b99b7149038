package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basket-service/config"
	"basket-service/internal/api"
	"basket-service/internal/broker"
	"basket-service/internal/models"
	"basket-service/internal/redisclient"
	"basket-service/internal/service"
	"basket-service/internal/store"
	"basket-service/internal/util"
	"basket-service/internal/worker"
	"basket-service/migrations"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, "basket-service"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting basket service",
		zap.String("storage", cfg.Database.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("kafka", cfg.Kafka.Enabled),
		zap.Bool("multiple_shops", cfg.Business.MultipleShops))

	tp, err := util.InitTracer("basket-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	repo := openStore(cfg, logger)
	defer repo.Close()

	checks := map[string]api.Pinger{"store": repo}

	var (
		cache       service.StockCache
		locker      service.Locker
		idempotency service.IdempotencyStore
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

		cache, locker, idempotency = redisClient, redisClient, redisClient
		checks["redis"] = redisClient
	} else {
		local := service.NewLocalLocker()
		locker, idempotency = local, local
		logger.Warn("Redis disabled, basket locks are local to this instance")
	}

	var (
		publisher    broker.Publisher
		logPublisher *broker.LogPublisher
	)
	if cfg.Kafka.Enabled {
		publisher = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))
	} else {
		logPublisher = broker.NewLogPublisher()
		publisher = logPublisher
	}
	defer publisher.Close()

	eventPublisher := broker.NewEventPublisher(publisher)

	inventoryClient := service.NewInventoryClient(repo, cache)
	basketService := service.NewBasketService(repo, inventoryClient, locker, eventPublisher, service.Options{
		MultipleShops: cfg.Business.MultipleShops,
		LockTTL:       cfg.Business.BasketLockTTL,
	})
	orderConverter := service.NewOrderConverter(basketService, repo, inventoryClient, idempotency, eventPublisher)
	fulfillment := service.NewFulfillmentHandler(repo, inventoryClient, eventPublisher)

	ctx := context.Background()
	if err := inventoryClient.SyncInventoryToRedis(ctx); err != nil {
		logger.Error("Failed to sync inventory to Redis", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var orderWorker *worker.OrderWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		orderWorker = worker.NewOrderWorker(consumer, fulfillment)
		go func() {
			if err := orderWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Order worker error", zap.Error(err))
			}
		}()
	} else {
		handler := broker.NewEventHandler()
		handler.OnOrderCreated(fulfillment.HandleOrderCreated)
		logPublisher.Forward(handler.HandleMessage)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if cfg.Server.Env != "production" {
		router.Use(gin.Logger())
	}
	handler := api.NewHandler(basketService, orderConverter, checks)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if orderWorker != nil {
		if err := orderWorker.Stop(); err != nil {
			logger.Error("Failed to stop order worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

// openStore connects the configured storage backend
func openStore(cfg *config.Config, logger *zap.Logger) store.Repository {
	switch cfg.Database.Driver {
	case "memory":
		ms := store.NewMemoryStore()
		shop := ms.AddShop(models.Shop{Identifier: "default", Name: "Default", Currency: "EUR", Enabled: true})
		logger.Info("Using in-memory store", zap.Int64("default_shop", shop.ID))
		return ms

	case "postgres":
		if err := migrations.Up(cfg.Database.URL); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		logger.Info("Database connected")
		return db

	default:
		logger.Fatal("Unknown storage driver", zap.String("driver", cfg.Database.Driver))
		return nil
	}
}
