package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"anondrop/backend/internal/auth"
	jwtpkg "anondrop/backend/internal/auth/jwt"
	"anondrop/backend/internal/cache"
	"anondrop/backend/internal/config"
	"anondrop/backend/internal/health"
	"anondrop/backend/internal/logger"
	"anondrop/backend/internal/monitoring"
	"anondrop/backend/internal/notify"
	"anondrop/backend/internal/pool"
	"anondrop/backend/internal/security"
	"anondrop/backend/internal/service"
	"anondrop/backend/internal/session"
	"anondrop/backend/internal/storage"
	"anondrop/backend/internal/storage/filesystem"
	"anondrop/backend/internal/storage/memory"
	"anondrop/backend/internal/storage/postgres"
	rediscache "anondrop/backend/internal/storage/redis"
	httptransport "anondrop/backend/internal/transport/http"
)

const version = "0.3.1"

// main 启动匿名投递箱 HTTP 服务。
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

	log, err := logger.New(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting anondrop server",
		zap.String("version", version),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	store, err := initializeStorage(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}

	// 投递文件载荷存储
	blobStore, err := filesystem.NewStore(cfg.Blob.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize blob storage: %v", err))
	}
	log.Info("blob storage initialized", zap.String("path", cfg.Blob.Path))

	// Redis 可选：启用后会话改由 Redis 承载，多实例部署共享解锁态
	var sessionStore session.Store
	var memorySessions *session.MemoryStore
	var rateLimitStore storage.RateLimitRepository
	if cfg.Redis.Enabled {
		redisCache, err := rediscache.NewCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		defer redisCache.Close()
		sessionStore = session.NewRedisStore(redisCache.Client())
		rateLimitStore = redisCache
		log.Info("using redis session store", zap.String("address", cfg.Redis.Address))
	} else {
		memorySessions = session.NewMemoryStore()
		sessionStore = memorySessions
		log.Info("using in-memory session store")
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 批量令牌操作的协程池
	workers := pool.NewWorkerPool(8, 64)
	workers.Start(ctx)

	// 初始化业务层
	location, err := time.LoadLocation(cfg.Drop.Timezone)
	if err != nil {
		panic(fmt.Sprintf("invalid timezone: %v", err))
	}
	validator := security.NewFileValidator(cfg.Drop.BlockedExtensions, cfg.Drop.MaxFileSize)

	tokenService := service.NewTokenService(store, cfg)
	depositService := service.NewDepositService(store, store, validator)
	inboxService := service.NewInboxService(store, store, blobStore, notify.NewLogNotifier(log), location)
	lifecycleService := service.NewLifecycleService(store, workers, log)

	// PIN 校验结果走本地缓存，避免每次请求都做 bcrypt 比较
	pinService := auth.NewPinService(store, cache.NewLocalCache(1024, 5*time.Minute))
	sessionManager := session.NewManager(sessionStore, cfg.Session.TTL, cfg.Session.MaxPinAttempts)

	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("access_expiry", cfg.JWT.AccessExpiry),
		zap.Duration("refresh_expiry", cfg.JWT.RefreshExpiry),
	)

	// 初始化监控系统
	metrics := monitoring.NewMetrics()
	env := "production"
	if cfg.Log.Development {
		env = "development"
	}
	systemHealth := monitoring.NewHealthChecker(store, cfg.Blob.Path, log, version, env)
	probes := health.NewHealthChecker(store, cfg.Blob.Path, log)
	log.Info("monitoring system initialized")

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:           cfg,
		TokenService:     tokenService,
		DepositService:   depositService,
		InboxService:     inboxService,
		LifecycleService: lifecycleService,
		PinService:       pinService,
		SessionManager:   sessionManager,
		JWTManager:       jwtManager,
		BlobStore:        blobStore,
		FileValidator:    validator,
		Store:            store,
		RateLimitStore:   rateLimitStore,
		Metrics:          metrics,
		HealthChecker:    probes,
		Logger:           log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

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

	// 定时停用过期令牌 goroutine
	if cfg.Drop.SweepEnabled {
		group.Go(func() error {
			ticker := time.NewTicker(cfg.Drop.SweepInterval)
			defer ticker.Stop()

			log.Info("starting expired token sweep task", zap.Duration("interval", cfg.Drop.SweepInterval))

			for {
				select {
				case <-groupCtx.Done():
					log.Info("sweep task stopped")
					return nil
				case <-ticker.C:
					start := time.Now()
					count, err := lifecycleService.SweepExpired()
					if err != nil {
						log.Error("failed to sweep expired tokens", zap.Error(err))
						continue
					}
					metrics.RecordSweepDuration(time.Since(start))
					if count > 0 {
						metrics.RecordTokensExpired(count)
					}
				}
			}
		})
	}

	// 内存会话存储需要定期回收过期会话
	if memorySessions != nil {
		group.Go(func() error {
			ticker := time.NewTicker(cfg.Session.TTL)
			defer ticker.Stop()

			for {
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
					if count := memorySessions.GC(time.Now()); count > 0 {
						log.Debug("expired sessions collected", zap.Int("count", count))
					}
				}
			}
		})
	}

	// 周期健康巡检 goroutine
	group.Go(func() error {
		systemHealth.StartPeriodicHealthCheck(groupCtx, 30*time.Second)
		return nil
	})

	// 定时刷新系统统计指标 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				stats, err := store.GetSystemStatistics()
				if err != nil {
					log.Warn("failed to collect system statistics", zap.Error(err))
					continue
				}
				metrics.UpdateOwnersTotal(int(stats.TotalOwners))
				metrics.UpdateTokensActive(int(stats.ActiveTokens))
				metrics.UpdateDepositsTotal(int(stats.TotalDeposits))
			}
		}
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

		workers.Stop()

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据配置选择令牌与投递的主存储
func initializeStorage(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	switch cfg.Database.Type {
	case "postgres":
		store, err := postgres.NewStore(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		log.Info("using postgres storage")
		return store, nil
	case "mysql":
		store, err := postgres.NewMySQLStore(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		log.Info("using mysql storage")
		return store, nil
	case "":
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Database.Type)
	}
}
