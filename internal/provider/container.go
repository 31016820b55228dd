package provider

import (
	"github.com/ceremonyhouse/splitpay/internal/cache"
	"github.com/ceremonyhouse/splitpay/internal/config"
	"github.com/ceremonyhouse/splitpay/internal/logger"
	"github.com/ceremonyhouse/splitpay/internal/models"
	"github.com/ceremonyhouse/splitpay/internal/queue"
	"github.com/ceremonyhouse/splitpay/internal/repository"
	"github.com/ceremonyhouse/splitpay/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo   repository.AdminRepository
	HouseRepo   repository.HouseRepository
	SplitRepo   repository.SplitRepository
	AttemptRepo repository.AttemptRepository

	// Services
	AuthService       *service.AuthService
	HouseService      *service.HouseService
	SplitService      *service.SplitService
	SettlementService *service.SettlementService
	BalanceGate       *service.BalanceGate
	ProcessorClient   service.ProcessorClient
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.HouseRepo = repository.NewHouseRepository(db)
	c.SplitRepo = repository.NewSplitRepository(db)
	c.AttemptRepo = repository.NewAttemptRepository(db)
}

func (c *Container) initServices() {
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.ProcessorClient = service.NewPixProcessorClient(&c.Config.Processor)
	c.BalanceGate = service.NewBalanceGate(c.ProcessorClient)
	c.HouseService = service.NewHouseService(c.HouseRepo, c.AttemptRepo)
	c.SplitService = service.NewSplitService(c.SplitRepo, c.HouseRepo)
	c.SettlementService = service.NewSettlementService(
		c.SplitRepo,
		c.HouseRepo,
		c.AttemptRepo,
		c.BalanceGate,
		c.ProcessorClient,
		c.QueueClient,
	)
}
