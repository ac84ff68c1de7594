package provider

import (
	"time"

	"github.com/payflow-core/internal/cache"
	"github.com/payflow-core/internal/config"
	"github.com/payflow-core/internal/gateway"
	"github.com/payflow-core/internal/gateway/doku"
	"github.com/payflow-core/internal/gateway/midtrans"
	"github.com/payflow-core/internal/gateway/xendit"
	"github.com/payflow-core/internal/logger"
	"github.com/payflow-core/internal/models"
	"github.com/payflow-core/internal/queue"
	"github.com/payflow-core/internal/repository"
	"github.com/payflow-core/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Registry    *gateway.Registry

	// Repositories
	PaymentRepo repository.PaymentRepository
	GatewayRepo repository.GatewayRepository
	RefundRepo  repository.RefundRepository

	// Services
	GatewayService      *service.GatewayService
	Validator           *service.PaymentValidator
	NotificationService *service.NotificationService
	PaymentService      *service.PaymentService
	StatusSyncService   *service.StatusSyncService
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

	// 1. 初始化网关适配器注册表
	c.initRegistry()

	// 2. 初始化 Repositories
	c.initRepositories()

	// 3. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRegistry() {
	registry := gateway.NewRegistry()
	registry.Register(midtrans.NewProvider(nil))
	registry.Register(xendit.NewProvider(nil))
	registry.Register(doku.NewProvider(nil))
	c.Registry = registry
}

func (c *Container) initRepositories() {
	db := models.DB
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.GatewayRepo = repository.NewGatewayRepository(db)
	c.RefundRepo = repository.NewRefundRepository(db)
}

func (c *Container) initServices() {
	paymentCfg := c.Config.Payment

	c.GatewayService = service.NewGatewayService(c.GatewayRepo)
	c.Validator = service.NewPaymentValidator(c.GatewayService, service.ValidatorOptions{
		MaxAmount:         models.NewMoneyFromInt(paymentCfg.MaxAmount),
		LargeAmountRatio:  paymentCfg.LargeAmountRatio,
		FeeWarningPercent: paymentCfg.FeeWarningPercentOfGross,
	})
	c.NotificationService = service.NewNotificationService(c.QueueClient)
	c.PaymentService = service.NewPaymentService(
		models.DB,
		c.PaymentRepo,
		c.RefundRepo,
		c.GatewayService,
		c.Validator,
		c.Registry,
		c.QueueClient,
		c.NotificationService,
		service.PaymentOptions{
			ProviderTimeout:   time.Duration(paymentCfg.ProviderTimeoutSeconds) * time.Second,
			CancelWindow:      time.Duration(paymentCfg.CancelWindowHours) * time.Hour,
			RefundArrivalDays: paymentCfg.RefundArrivalDays,
			ReconcileDelay:    time.Duration(paymentCfg.ReconcileDelaySeconds) * time.Second,
		},
	)
	c.StatusSyncService = service.NewStatusSyncService(
		models.DB,
		c.PaymentRepo,
		c.GatewayService,
		c.Registry,
		c.NotificationService,
		time.Duration(paymentCfg.StatusCacheTTLMinutes)*time.Minute,
		time.Duration(paymentCfg.ProviderTimeoutSeconds)*time.Second,
	)
}
