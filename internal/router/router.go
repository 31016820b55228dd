package router

import (
	"fmt"
	"strings"

	"github.com/ceremonyhouse/splitpay/internal/cache"
	"github.com/ceremonyhouse/splitpay/internal/config"
	"github.com/ceremonyhouse/splitpay/internal/constants"
	adminhandlers "github.com/ceremonyhouse/splitpay/internal/http/handlers/admin"
	"github.com/ceremonyhouse/splitpay/internal/logger"
	"github.com/ceremonyhouse/splitpay/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	redisClient := cache.Client()
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authorized.PUT("/password", adminHandler.UpdateAdminPassword)

				// 场馆管理
				authorized.GET("/houses", adminHandler.ListHouses)
				authorized.GET("/houses/:id", adminHandler.GetHouse)
				authorized.POST("/houses", adminHandler.CreateHouse)
				authorized.PUT("/houses/:id/payout", adminHandler.UpdateHousePayout)

				// 分账台账
				authorized.POST("/splits", adminHandler.CreateSplit)
				authorized.GET("/splits/history", adminHandler.GetSplitHistory)
				authorized.GET("/splits/totals", adminHandler.GetSettlementTotals)

				// 待结算义务
				authorized.GET("/settlements/obligations", adminHandler.GetObligations)
				authorized.GET("/settlements/houses/:id/pending", adminHandler.GetHousePendingSplits)

				// 结算执行
				authorized.POST("/settlements/manual", adminHandler.SettleManual)
				authorized.POST("/settlements/automated", adminHandler.SettleAutomated)
				authorized.GET("/settlements/balance", adminHandler.GetProcessorBalance)
				authorized.GET("/settlements/attempts/:key", adminHandler.GetSettlementAttempt)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
