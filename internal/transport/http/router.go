package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anondrop/backend/internal/auth"
	jwtpkg "anondrop/backend/internal/auth/jwt"
	"anondrop/backend/internal/config"
	"anondrop/backend/internal/health"
	"anondrop/backend/internal/middleware"
	"anondrop/backend/internal/monitoring"
	"anondrop/backend/internal/security"
	"anondrop/backend/internal/service"
	"anondrop/backend/internal/session"
	"anondrop/backend/internal/storage"
	"anondrop/backend/internal/storage/filesystem"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config           *config.Config
	TokenService     *service.TokenService
	DepositService   *service.DepositService
	InboxService     *service.InboxService
	LifecycleService *service.LifecycleService
	PinService       *auth.PinService
	SessionManager   *session.Manager
	JWTManager       *jwtpkg.Manager
	BlobStore        *filesystem.Store
	FileValidator    *security.FileValidator
	Store            storage.Store
	// RateLimitStore 为空时限流计数落在主存储；多实例部署传入 Redis 后端
	RateLimitStore storage.RateLimitRepository
	Metrics          *monitoring.Metrics
	HealthChecker    *health.HealthChecker
	Logger           *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger, "/v1/drop/:token"))
	router.Use(middleware.SecurityHeaders())

	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.HTTPMetrics())
		router.Use(mm.BusinessMetrics())
		router.Use(mm.RateLimitMetrics())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins: deps.Config.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Disposition",
			"X-Max-Body-Size",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	authHandler := NewAuthHandler(deps.Store, deps.JWTManager, deps.Logger)
	tokenHandler := NewTokenHandler(deps.TokenService, deps.LifecycleService, deps.Logger)
	depositHandler := NewDepositHandler(deps.DepositService, deps.TokenService, deps.BlobStore, deps.FileValidator, deps.Logger)
	inboxHandler := NewInboxHandler(deps.InboxService, deps.Logger)
	pinHandler := NewPinHandler(deps.PinService, deps.SessionManager, deps.Logger)

	// 创建中间件
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)
	pinGate := middleware.NewPinGate(deps.SessionManager, deps.PinService, deps.Logger)
	rateLimitStore := deps.RateLimitStore
	if rateLimitStore == nil {
		rateLimitStore = deps.Store
	}
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, deps.Logger)

	depositLimit := int64(deps.Config.Drop.DepositPerMinute)
	if depositLimit <= 0 {
		depositLimit = 10
	}

	// 健康检查与指标
	if deps.HealthChecker != nil {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(200, deps.HealthChecker.CheckHealth())
		})
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint))
	} else {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		authRoutes.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))
		{
			authRoutes.POST("/session", authHandler.CreateSession)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
		}

		// ========== Drop Routes（匿名投递，无需认证） ==========
		dropRoutes := v1.Group("/drop")
		dropRoutes.Use(middleware.DepositBodyLimit(deps.Config.Drop.MaxFileSize))
		dropRoutes.Use(rateLimiter.Limit("deposit", depositLimit, time.Minute))
		{
			dropRoutes.GET("/:token", depositHandler.Probe)
			dropRoutes.POST("/:token", depositHandler.Deposit)
		}

		// ========== Token Routes（属主令牌管理） ==========
		tokenRoutes := v1.Group("/tokens")
		tokenRoutes.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))
		tokenRoutes.Use(jwtAuth.RequireAuth())
		{
			tokenRoutes.POST("", tokenHandler.Create)
			tokenRoutes.GET("", tokenHandler.List)
			tokenRoutes.GET("/stats", tokenHandler.Stats)
			tokenRoutes.POST("/disable-all", tokenHandler.DisableAll)
			tokenRoutes.POST("/enable-all", tokenHandler.EnableAll)
			tokenRoutes.POST("/delete-all", tokenHandler.DeleteAll)
			tokenRoutes.GET("/:id", tokenHandler.Get)
			tokenRoutes.PATCH("/:id", tokenHandler.SetActive)
			tokenRoutes.DELETE("/:id", tokenHandler.Delete)
		}

		// ========== PIN Routes ==========
		pinRoutes := v1.Group("/pin")
		pinRoutes.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))
		pinRoutes.Use(jwtAuth.RequireAuth())
		{
			pinRoutes.POST("", pinHandler.Set)
			pinRoutes.POST("/verify", pinHandler.Verify)
			pinRoutes.POST("/lock", pinHandler.Lock)
		}

		// ========== Inbox Routes（PIN 门禁之后） ==========
		inboxRoutes := v1.Group("/inbox")
		inboxRoutes.Use(jwtAuth.RequireAuth())
		inboxRoutes.Use(pinGate.RequireUnlocked())
		{
			inboxRoutes.GET("", inboxHandler.List)
			inboxRoutes.GET("/grouped", inboxHandler.Grouped)
			inboxRoutes.DELETE("", inboxHandler.Clear)
			inboxRoutes.GET("/deposits/:id", inboxHandler.View)
			inboxRoutes.GET("/deposits/:id/file", inboxHandler.Download)
		}
	}

	return router
}
