package container

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/persuratan-gin/internal/auth"
	"github.com/mautops/persuratan-gin/internal/config"
	"github.com/mautops/persuratan-gin/internal/database"
	"github.com/mautops/persuratan-gin/internal/integration"
	"github.com/mautops/persuratan-gin/internal/lock"
	"github.com/mautops/persuratan-gin/internal/metrics"
	"github.com/mautops/persuratan-gin/internal/render"
	"github.com/mautops/persuratan-gin/internal/repository"
	"github.com/mautops/persuratan-gin/internal/service"
	"github.com/mautops/persuratan-gin/internal/storage"
	"github.com/mautops/persuratan-gin/internal/websocket"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、锁、存储、服务等
type Container struct {
	db          *gorm.DB
	redis       *redis.Client
	redisLocker *lock.RedisLocker
	hub         *websocket.Hub
	dispatcher  *integration.EventDispatcher
	manager     *integration.DocumentManager
	sealer      *integration.SealPipeline
	coordinator *integration.SigningCoordinator
	collector   *metrics.Collector
	validator   *auth.TokenValidator
	store       storage.ArtifactStore
	policy      workflow.Policy

	auditLogSvc   service.AuditLogService
	documentSvc   service.DocumentService
	querySvc      service.QueryService
	statisticsSvc service.StatisticsService
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// 1. 初始化数据库(带重试机制),默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c := &Container{db: db}

	// 2. 文件锁: 配置 Redis 时使用分布式锁,否则使用进程内锁
	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Redis.Addr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.redisLocker = lock.NewRedisLocker(c.redis, lock.RedisLockerOptions{
			TTL:    cfg.Redis.LockTTL,
			Logger: logger,
		})
		locker = c.redisLocker
	}

	// 3. 封存文件存储
	c.store, err = newArtifactStore(ctx, cfg.Storage)
	if err != nil {
		c.Close()
		return nil, err
	}

	// 4. 事件推送,默认使用 5 个 worker
	c.hub = websocket.NewHub()
	c.dispatcher = integration.NewEventDispatcher(db, c.hub, 5, logger)

	// 5. 公文变更、封存与签署
	c.policy = workflow.Policy{OwnerMaySignBeforeReady: cfg.Signing.OwnerMaySignBeforeReady}
	c.manager = integration.NewDocumentManager(db, integration.DocumentManagerOptions{
		Locker:      locker,
		Dispatcher:  c.dispatcher,
		LockTimeout: cfg.Signing.LockTimeout,
		Logger:      logger,
	})
	renderer := render.NewPDFRenderer(render.PDFOptions{Organization: cfg.Signing.Organization})
	c.sealer = integration.NewSealPipeline(renderer, c.store, cfg.Signing.SealTimeout, logger)
	c.coordinator = integration.NewSigningCoordinator(c.manager, c.sealer, integration.SigningCoordinatorOptions{
		Policy:       c.policy,
		Workers:      cfg.Signing.BatchWorkers,
		MaxBatchSize: cfg.Signing.MaxBatchSize,
		Logger:       logger,
	})

	// 6. 服务
	c.auditLogSvc = service.NewAuditLogService(repository.NewAuditLogRepository(db))
	c.documentSvc = service.NewDocumentService(c.manager, c.coordinator, c.sealer, c.auditLogSvc)
	c.querySvc = service.NewQueryService(db, c.policy)
	c.statisticsSvc = service.NewStatisticsService(db)

	// 7. 指标收集
	documents := c.manager.Documents()
	c.collector = metrics.NewCollector(db, func(ctx context.Context) (map[int]int64, error) {
		counts, err := documents.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[int]int64, len(counts))
		for status, n := range counts {
			out[status.Code()] = n
		}
		return out, nil
	}, 30*time.Second)

	// 8. 认证,未启用时信任 X-Actor-ID 请求头
	if cfg.Auth.Enabled {
		c.validator = auth.NewTokenValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.ActorClaim)
	}

	return c, nil
}

// newArtifactStore 根据配置创建封存文件存储
func newArtifactStore(ctx context.Context, cfg config.StorageConfig) (storage.ArtifactStore, error) {
	switch cfg.Driver {
	case "s3":
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			BaseEndpoint: cfg.S3.BaseEndpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		return storage.NewS3Store(client, cfg.S3.Bucket), nil
	case "", "local":
		store, err := storage.NewLocalStore(cfg.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Redis 获取 Redis 客户端,未配置时为 nil
func (c *Container) Redis() *redis.Client {
	return c.redis
}

// RedisLocker 获取 Redis 锁,未配置时为 nil
func (c *Container) RedisLocker() *lock.RedisLocker {
	return c.redisLocker
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Dispatcher 获取事件分发器
func (c *Container) Dispatcher() *integration.EventDispatcher {
	return c.dispatcher
}

// Manager 获取公文变更管理器
func (c *Container) Manager() *integration.DocumentManager {
	return c.manager
}

// Sealer 获取封存流水线
func (c *Container) Sealer() *integration.SealPipeline {
	return c.sealer
}

// Collector 获取指标收集器
func (c *Container) Collector() *metrics.Collector {
	return c.collector
}

// Validator 获取 Token 验证器,未启用认证时为 nil
func (c *Container) Validator() *auth.TokenValidator {
	return c.validator
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditLogSvc
}

// DocumentService 获取公文服务
func (c *Container) DocumentService() service.DocumentService {
	return c.documentSvc
}

// QueryService 获取查询服务
func (c *Container) QueryService() service.QueryService {
	return c.querySvc
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statisticsSvc
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.dispatcher != nil {
		c.dispatcher.Stop()
	}
	if c.redis != nil {
		c.redis.Close()
	}
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	return nil
}
