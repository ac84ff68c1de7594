package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/payflow-core/internal/cache"
	"github.com/payflow-core/internal/constants"
	"github.com/payflow-core/internal/gateway"
	"github.com/payflow-core/internal/logger"
	"github.com/payflow-core/internal/models"
	"github.com/payflow-core/internal/repository"

	"gorm.io/gorm"
)

// cachedStatus 状态缓存条目
type cachedStatus struct {
	Status     string    `json:"status"`
	ObservedAt time.Time `json:"observed_at"`
}

// StatusSyncService 支付状态同步服务。
// 短期缓存内直接返回本地状态；过期或强制刷新时回查网关，
// 仅当网关观察时间晚于本地记录时才应用变更。
type StatusSyncService struct {
	db          *gorm.DB
	paymentRepo repository.PaymentRepository
	gatewaySvc  *GatewayService
	registry    *gateway.Registry
	notifySvc   *NotificationService

	cacheTTL        time.Duration
	providerTimeout time.Duration
	now             func() time.Time

	mu    sync.Mutex
	local map[string]cachedStatus // redis 未启用时的进程内缓存
}

// NewStatusSyncService 创建状态同步服务
func NewStatusSyncService(db *gorm.DB, paymentRepo repository.PaymentRepository, gatewaySvc *GatewayService, registry *gateway.Registry, notifySvc *NotificationService, cacheTTL, providerTimeout time.Duration) *StatusSyncService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if providerTimeout <= 0 {
		providerTimeout = 10 * time.Second
	}
	return &StatusSyncService{
		db:              db,
		paymentRepo:     paymentRepo,
		gatewaySvc:      gatewaySvc,
		registry:        registry,
		notifySvc:       notifySvc,
		cacheTTL:        cacheTTL,
		providerTimeout: providerTimeout,
		now:             time.Now,
		local:           make(map[string]cachedStatus),
	}
}

// CheckStatus 获取支付状态。
// forceRefresh 为 false 且缓存未过期时不触发网关调用。
func (s *StatusSyncService) CheckStatus(ctx context.Context, id string, forceRefresh bool) (models.Status, error) {
	if !forceRefresh {
		if status, ok := s.cachedStatus(ctx, id); ok {
			return status, nil
		}
	}

	payment, err := s.paymentRepo.GetByID(id)
	if err != nil {
		return "", err
	}
	if payment == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	// 终态不会再变化，直接回填缓存
	if payment.Status.IsTerminal() || payment.ProviderRef == "" {
		s.storeStatus(ctx, id, payment.Status)
		return payment.Status, nil
	}

	gw, provider, err := s.resolveProvider(payment.GatewayID)
	if err != nil {
		return "", err
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	result, err := provider.QueryStatus(queryCtx, gw.ConfigJSON, payment.ProviderRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayCall, err)
	}

	final, err := s.applyObservation(payment, result)
	if err != nil {
		return "", err
	}
	s.storeStatus(ctx, id, final)
	return final, nil
}

// applyObservation 应用网关侧观察结果，带单调时间戳保护
func (s *StatusSyncService) applyObservation(payment *models.Payment, result *gateway.StatusResult) (models.Status, error) {
	observedAt := result.UpdatedAt
	if observedAt.IsZero() {
		observedAt = s.now()
	}

	if result.Status == payment.Status {
		return s.touchSyncedAt(payment.ID, observedAt)
	}

	if payment.StatusSyncedAt != nil && !observedAt.After(*payment.StatusSyncedAt) {
		// 网关返回的是更旧的观察，保持本地状态
		logger.Debugw("status_sync_stale_observation",
			"payment_id", payment.ID,
			"local_status", payment.Status.String(),
			"provider_status", result.Status.String(),
		)
		return payment.Status, nil
	}

	var final models.Status
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.paymentRepo.WithTx(tx)
		locked, err := repo.GetByIDForUpdate(payment.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, payment.ID)
		}
		final = locked.Status
		if locked.Status == result.Status {
			locked.StatusSyncedAt = &observedAt
			return repo.Update(locked)
		}
		if !locked.Status.CanTransitionTo(result.Status) {
			logger.Warnw("status_sync_transition_rejected",
				"payment_id", locked.ID,
				"from", locked.Status.String(),
				"to", result.Status.String(),
			)
			return nil
		}
		locked.Status = result.Status
		locked.StatusSyncedAt = &observedAt
		if result.Status == models.StatusSuccess && locked.PaidAt == nil {
			locked.PaidAt = &observedAt
		}
		if err := repo.Update(locked); err != nil {
			return err
		}
		final = result.Status
		return nil
	})
	if err != nil {
		return "", err
	}

	if final == result.Status && final != payment.Status {
		s.notifySvc.Notify(payment.ID, constants.NotificationEventStatusChanged, map[string]interface{}{
			"from": payment.Status.String(),
			"to":   final.String(),
		})
		logger.Infow("status_sync_applied",
			"payment_id", payment.ID,
			"from", payment.Status.String(),
			"to", final.String(),
		)
	}
	return final, nil
}

func (s *StatusSyncService) touchSyncedAt(id string, observedAt time.Time) (models.Status, error) {
	var status models.Status
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.paymentRepo.WithTx(tx)
		locked, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		locked.StatusSyncedAt = &observedAt
		status = locked.Status
		return repo.Update(locked)
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func (s *StatusSyncService) resolveProvider(gatewayID uint) (*models.Gateway, gateway.Provider, error) {
	gw, err := s.gatewaySvc.GetByID(gatewayID)
	if err != nil {
		return nil, nil, err
	}
	if gw == nil {
		return nil, nil, fmt.Errorf("%w: gateway %d not found", ErrGatewayUnavailable, gatewayID)
	}
	provider, err := s.registry.Resolve(gw.Code)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return gw, provider, nil
}

func (s *StatusSyncService) cachedStatus(ctx context.Context, id string) (models.Status, bool) {
	key := cache.PaymentStatusKey(id)
	if cache.Enabled() {
		var entry cachedStatus
		found, err := cache.GetJSON(ctx, key, &entry)
		if err != nil {
			logger.Warnw("status_cache_read_failed", "payment_id", id, "error", err)
			return "", false
		}
		if !found {
			return "", false
		}
		if s.now().Sub(entry.ObservedAt) > s.cacheTTL {
			return "", false
		}
		return models.Status(entry.Status), true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.local[id]
	if !ok || s.now().Sub(entry.ObservedAt) > s.cacheTTL {
		return "", false
	}
	return models.Status(entry.Status), true
}

func (s *StatusSyncService) storeStatus(ctx context.Context, id string, status models.Status) {
	entry := cachedStatus{Status: status.String(), ObservedAt: s.now()}
	key := cache.PaymentStatusKey(id)
	if cache.Enabled() {
		if err := cache.SetJSON(ctx, key, entry, s.cacheTTL); err != nil {
			logger.Warnw("status_cache_write_failed", "payment_id", id, "error", err)
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[id] = entry
}

// Invalidate 清除指定支付的状态缓存
func (s *StatusSyncService) Invalidate(ctx context.Context, id string) {
	if cache.Enabled() {
		if err := cache.Del(ctx, cache.PaymentStatusKey(id)); err != nil {
			logger.Warnw("status_cache_delete_failed", "payment_id", id, "error", err)
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.local, id)
}
