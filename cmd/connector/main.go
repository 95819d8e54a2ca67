package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/mms-connector/config"
	"github.com/athebyme/mms-connector/internal/adapters/cache"
	"github.com/athebyme/mms-connector/internal/adapters/logger"
	"github.com/athebyme/mms-connector/internal/adapters/messaging"
	"github.com/athebyme/mms-connector/internal/adapters/mms"
	"github.com/athebyme/mms-connector/internal/adapters/storage"
	"github.com/athebyme/mms-connector/internal/api"
	"github.com/athebyme/mms-connector/internal/api/handlers"
	"github.com/athebyme/mms-connector/internal/domain/models"
	"github.com/athebyme/mms-connector/internal/domain/services"
	"github.com/athebyme/mms-connector/internal/security"
	"github.com/athebyme/mms-connector/pkg/interfaces"
)

func main() {
	configPath := flag.String("config", "", "путь к файлу конфигурации")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "невалидная конфигурация: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting mms connector", "version", cfg.Version, "env", cfg.ENV)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Хранилище сущностей
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Host, cfg.Postgres.Port,
		cfg.Postgres.DBName, cfg.Postgres.SSLMode, cfg.Postgres.PoolSize)

	store, err := storage.NewEntityStorage(ctx, connString)
	if err != nil {
		log.Fatal("failed to connect to postgres", "error", err)
	}
	defer store.Close()

	// Кэш: redis для распределенной блокировки цикла,
	// in-memory как фолбэк для разработки без redis
	var cachePort interfaces.CachePort
	cachePort, err = cache.NewRedisCache(ctx, cache.Options{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.ConnectTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.Warn("redis is not available, falling back to in-memory cache", "error", err)
		cachePort = cache.NewMemoryCache(cfg.Redis.DefaultExpiration, time.Minute)
	}
	defer cachePort.Close()

	// Брокер событий: коннектор только публикует
	messagingPort, err := messaging.NewKafkaMessaging(
		cfg.Kafka.Brokers, cfg.AppName, cfg.Kafka.CompressionType, cfg.Kafka.FlushTimeout)
	if err != nil {
		log.Warn("kafka is not available, events will not be published", "error", err)
		messagingPort = nil
	} else {
		defer messagingPort.Close()
	}

	// Подписанный клиент API маркетплейса
	signer, err := mms.NewSigner(cfg.Mms.AppID, cfg.Mms.AppKey)
	if err != nil {
		log.Fatal("failed to initialize request signer", "error", err)
	}
	client, err := mms.NewClient(cfg.Mms.BaseURL, signer, log, cfg.Mms.Timeout)
	if err != nil {
		log.Fatal("failed to initialize api client", "error", err)
	}
	marketplaceAPI := mms.NewAPI(client, cfg.Mms.MarketplaceID)

	statuses := models.StatusSets{
		Shippable:        cfg.Sync.ShippableStatuses,
		Excluded:         cfg.Sync.ExcludedStatuses,
		FirstRunExcluded: cfg.Sync.FirstRunExcludedStatuses,
	}

	reconciler := services.NewOrderReconciler(marketplaceAPI, store, cachePort, messagingPort, log,
		services.ReconcilerConfig{
			StoreID:         cfg.Sync.StoreID,
			InitialSinceID:  cfg.Sync.InitialSinceID,
			EmailDomain:     cfg.Sync.EmailDomain,
			BundleSeparator: cfg.Stock.BundleSeparator,
			CycleLockTTL:    cfg.Sync.CycleLockTTL,
			OrderTopic:      cfg.Kafka.OrderTopic,
			Statuses:        statuses,
		})

	pusher := services.NewStockPusher(marketplaceAPI, store, messagingPort, log,
		services.StockPusherConfig{
			Enabled:             cfg.Stock.Enabled,
			BundleSeparator:     cfg.Stock.BundleSeparator,
			MultiplierAttribute: cfg.Stock.MultiplierAttribute,
			StockTopic:          cfg.Kafka.StockTopic,
		})

	fulfillment := services.NewFulfillmentService(marketplaceAPI, store, log, statuses)

	jwtManager, err := security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTExpirationMin, cfg.AppName)
	if err != nil {
		log.Fatal("failed to initialize jwt manager", "error", err)
	}

	syncHandler := handlers.NewSyncHandler(reconciler, pusher, fulfillment, store, log, cfg.Sync.StoreID)

	metricsEndpoint := ""
	if cfg.Metrics.Enabled {
		metricsEndpoint = cfg.Metrics.Endpoint
	}
	router := api.SetupRouter(syncHandler, jwtManager, log, metricsEndpoint)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("admin api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("admin api server failed", "error", err)
		}
	}()

	// Периодический цикл синхронизации заказов
	go runSyncLoop(ctx, reconciler, log, cfg.Sync.Interval)

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("admin api shutdown failed", "error", err)
	}

	log.Info("mms connector stopped")
}

// runSyncLoop запускает цикл синхронизации сразу и далее по интервалу
func runSyncLoop(ctx context.Context, reconciler *services.OrderReconciler,
	log interfaces.LoggerPort, interval time.Duration) {

	if interval <= 0 {
		interval = 5 * time.Minute
	}

	runOnce := func() {
		report, err := reconciler.RunCycle(ctx)
		switch {
		case errors.Is(err, services.ErrCycleInProgress):
			log.Info("sync cycle skipped: previous cycle still running")
		case err != nil:
			log.Error("sync cycle failed", "error", err)
		default:
			log.Info("sync cycle finished",
				"listed", report.Listed, "ingested", report.Ingested, "excluded", report.Excluded)
		}
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
