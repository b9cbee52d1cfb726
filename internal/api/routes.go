package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/persuratan-gin/internal/auth"
	"github.com/mautops/persuratan-gin/internal/config"
	"github.com/mautops/persuratan-gin/internal/service"
	"github.com/mautops/persuratan-gin/internal/websocket"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config            *config.Config
	DB                *gorm.DB
	Hub               *websocket.Hub
	Validator         *auth.TokenValidator // 为 nil 时使用 X-Actor-ID 请求头
	DocumentService   service.DocumentService
	QueryService      service.QueryService
	StatisticsService service.StatisticsService
	AuditLogService   service.AuditLogService
	HealthChecks      map[string]Pinger
}

// SetupRoutes 配置路由
func SetupRoutes(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(cfg.CORS))
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware(cfg.Tracing))
	}
	router.Use(ErrorHandlerMiddleware())
	if cfg.RateLimit.GlobalRPS > 0 {
		router.Use(RateLimitMiddleware(cfg.RateLimit.GlobalRPS, cfg.RateLimit.GlobalBurst))
	}

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.HealthChecks)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)
	router.GET("/version", VersionHandler)

	// WebSocket 路由,在握手阶段认证
	if deps.Hub != nil {
		upgrader := websocket.NewUpgrader(cfg.CORS.AllowedOrigins)
		router.GET("/ws", websocket.WebSocketHandler(deps.Hub, deps.Validator, upgrader, GetLogger()))
	}

	documentController := NewDocumentController(deps.DocumentService)
	queryController := NewQueryController(deps.QueryService, deps.StatisticsService, deps.AuditLogService)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	v1.Use(VersionMiddleware())
	v1.Use(auth.ActorMiddleware(deps.Validator))
	if cfg.RateLimit.Enabled {
		v1.Use(NewActorRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware())
	}
	{
		documents := v1.Group("/documents")
		{
			documents.POST("", documentController.Create)
			documents.GET("", queryController.ListDocuments)
			documents.POST("/sign-batch", documentController.SignBatch)
			documents.POST("/packet", documentController.Packet)
			documents.GET("/:hash", documentController.Get)
			documents.POST("/:hash/recipients", documentController.AddRecipient)
			documents.POST("/:hash/forward", documentController.Forward)
			documents.POST("/:hash/acknowledge", documentController.Acknowledge)
			documents.PUT("/:hash/signers", documentController.RequireSigners)
			documents.POST("/:hash/route", documentController.Route)
			documents.GET("/:hash/preview", documentController.Preview)
			documents.GET("/:hash/artifact", documentController.Artifact)
			documents.GET("/:hash/history", queryController.GetHistory)
			documents.GET("/:hash/audit", queryController.GetAuditLogs)
		}

		statistics := v1.Group("/statistics")
		{
			statistics.GET("/status", queryController.StatisticsByStatus)
			statistics.GET("/period", queryController.StatisticsByPeriod)
			statistics.GET("/signatures", queryController.SignatureStatistics)
		}
	}

	return router
}
