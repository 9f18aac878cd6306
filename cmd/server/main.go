package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"webmail/backend/internal/blob"
	blobfs "webmail/backend/internal/blob/filesystem"
	blobs3 "webmail/backend/internal/blob/s3"
	"webmail/backend/internal/config"
	"webmail/backend/internal/logger"
	"webmail/backend/internal/monitoring"
	"webmail/backend/internal/pool"
	"webmail/backend/internal/push"
	"webmail/backend/internal/service"
	"webmail/backend/internal/storage"
	"webmail/backend/internal/storage/memory"
	"webmail/backend/internal/storage/postgres"
	redisstore "webmail/backend/internal/storage/redis"
	httptransport "webmail/backend/internal/transport/http"
)

// main 启动入站投递与邮箱 API 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting webmail backend",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	store, err := initializeStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	// 初始化对象存储
	blobStore, err := initializeBlobStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize blob storage", zap.Error(err))
	}

	// Redis（可选，用于跨实例限流计数）
	var rateCounter storage.RateLimitRepository
	if cfg.Redis.Address != "" {
		redisClient, err := redisstore.New(&cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, falling back to in-process rate limiting", zap.Error(err))
		} else {
			defer redisClient.Close()
			rateCounter = redisClient
			log.Info("redis connected", zap.String("address", cfg.Redis.Address))
		}
	}

	// 初始化监控系统
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	healthChecker := monitoring.NewHealthChecker(store, log)

	// 推送发送器
	var sender push.Sender
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		sender = push.NewWebPushSender(
			cfg.Push.Subscriber,
			cfg.Push.VAPIDPublicKey,
			cfg.Push.VAPIDPrivateKey,
			cfg.Push.Timeout,
		)
		log.Info("web push enabled", zap.String("subscriber", cfg.Push.Subscriber))
	} else {
		sender = push.NopSender{}
		log.Warn("VAPID keys not configured, push notifications disabled")
	}

	// 副作用工作池
	workers := pool.NewWorkerPool(cfg.Ingest.Workers, cfg.Ingest.QueueSize, log)

	// 初始化服务层
	ingestService := service.NewIngestService(store, blobStore, sender, workers, metrics, log)
	mailboxService := service.NewMailboxService(store)
	emailService := service.NewEmailService(store, blobStore)
	subscriptionService := service.NewSubscriptionService(store)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:              cfg,
		IngestService:       ingestService,
		MailboxService:      mailboxService,
		EmailService:        emailService,
		SubscriptionService: subscriptionService,
		Metrics:             metrics,
		HealthChecker:       healthChecker,
		RateLimitCounter:    rateCounter,
		Registry:            registry,
		Logger:              log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers.Start()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 等在途的对象上传和推送任务清空
		workers.Stop()

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStore 根据配置选择存储实现
func initializeStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	switch cfg.Database.Type {
	case "postgres":
		store, err := postgres.NewStore(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info("using postgres storage")
		return store, nil
	case "mysql":
		store, err := postgres.NewMySQLStore(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		log.Info("using mysql storage")
		return store, nil
	default:
		// 未配置数据库时使用内存存储（开发环境）
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}
}

// initializeBlobStore 根据配置选择对象存储实现
func initializeBlobStore(cfg *config.Config, log *zap.Logger) (blob.Store, error) {
	switch cfg.Storage.Backend {
	case "s3":
		store, err := blobs3.New(context.Background(), blobs3.Config{
			Bucket:   cfg.Storage.S3Bucket,
			Region:   cfg.Storage.S3Region,
			Endpoint: cfg.Storage.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("connect s3: %w", err)
		}
		log.Info("using s3 blob storage", zap.String("bucket", cfg.Storage.S3Bucket))
		return store, nil
	default:
		store, err := blobfs.NewStore(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open blob directory: %w", err)
		}
		log.Info("using filesystem blob storage", zap.String("path", cfg.Storage.Path))
		return store, nil
	}
}
