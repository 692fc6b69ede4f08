package api

import (
	"fmt"
	"time"

	"macro-snap/internal/api/handlers"
	"macro-snap/internal/api/handlers/health"
	nutritionHandler "macro-snap/internal/api/handlers/nutrition"
	"macro-snap/internal/api/middleware"
	"macro-snap/internal/core/analysis"
	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, status health.StatusSource, analysisSvc *analysis.Service) (*gin.Engine, error) {
	if status == nil || analysisSvc == nil {
		return nil, fmt.Errorf("failed to setup router: services not initialized")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(requestid.New()) // 自動生成請求 ID
	router.Use(middleware.Logger("/health", "/ready", "/live"))
	router.Use(middleware.Recovery())

	// CORS 設置
	router.Use(cors.New(corsConfig(cfg.Server.AllowOrigins)))

	// 請求體大小限制與超時
	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	// 注入設定，供錯誤回應判斷 debug 模式
	router.Use(func(c *gin.Context) {
		c.Set(handlers.ConfigKey, cfg)
		c.Next()
	})

	// 健康檢查路由
	healthHandler := health.NewHandler(cfg, status, analysisSvc.StorageEnabled())
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	api.Use(middleware.Deduplication(cfg.DedupWindow))
	{
		h := nutritionHandler.NewHandler(analysisSvc)

		nutritionGroup := api.Group("/nutrition")
		{
			// 圖片營養分析
			nutritionGroup.POST("/analyze", h.HandleAnalyze)

			// 直接正規化模型輸出
			nutritionGroup.POST("/normalize", h.HandleNormalize)
		}

		entryGroup := api.Group("/entries")
		{
			entryGroup.GET("", h.HandleListEntries)
			entryGroup.GET("/:id", h.HandleGetEntry)
			entryGroup.DELETE("/:id", h.HandleDeleteEntry)
		}
	}

	// 未註冊的路由回傳統一的 JSON 錯誤
	router.NoRoute(func(c *gin.Context) {
		handlers.RespondError(c, common.ErrNotFound)
	})

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.Bool("storage_enabled", analysisSvc.StorageEnabled()),
		zap.Duration("timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router, nil
}

// corsConfig 允許所有來源時不可同時允許憑證
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
