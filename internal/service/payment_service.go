package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/payflow-core/internal/constants"
	"github.com/payflow-core/internal/gateway"
	"github.com/payflow-core/internal/logger"
	"github.com/payflow-core/internal/models"
	"github.com/payflow-core/internal/queue"
	"github.com/payflow-core/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentOptions 支付流程配置
type PaymentOptions struct {
	ProviderTimeout   time.Duration // 网关调用超时
	CancelWindow      time.Duration // 可取消时间窗口
	RefundArrivalDays int           // 退款预计到账天数
	ReconcileDelay    time.Duration // 超时对账任务延迟
}

func (o *PaymentOptions) normalize() {
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = 10 * time.Second
	}
	if o.CancelWindow <= 0 {
		o.CancelWindow = 24 * time.Hour
	}
	if o.RefundArrivalDays <= 0 {
		o.RefundArrivalDays = 3
	}
	if o.ReconcileDelay <= 0 {
		o.ReconcileDelay = time.Minute
	}
}

// PaymentService 支付状态机服务
type PaymentService struct {
	db              *gorm.DB
	paymentRepo     repository.PaymentRepository
	refundRepo      repository.RefundRepository
	gatewaySvc      *GatewayService
	validator       *PaymentValidator
	registry        *gateway.Registry
	queueClient     *queue.Client
	notificationSvc *NotificationService
	opts            PaymentOptions
	now             func() time.Time
}

// NewPaymentService 创建支付服务
func NewPaymentService(db *gorm.DB, paymentRepo repository.PaymentRepository, refundRepo repository.RefundRepository, gatewaySvc *GatewayService, validator *PaymentValidator, registry *gateway.Registry, queueClient *queue.Client, notificationSvc *NotificationService, opts PaymentOptions) *PaymentService {
	opts.normalize()
	return &PaymentService{
		db:              db,
		paymentRepo:     paymentRepo,
		refundRepo:      refundRepo,
		gatewaySvc:      gatewaySvc,
		validator:       validator,
		registry:        registry,
		queueClient:     queueClient,
		notificationSvc: notificationSvc,
		opts:            opts,
		now:             time.Now,
	}
}

// ProcessPaymentInput 发起支付请求
type ProcessPaymentInput struct {
	Method         string
	Amount         models.Money
	TransactionRef string
	Customer       CustomerContext
	Note           string
}

// ProcessPaymentResult 发起支付结果
type ProcessPaymentResult struct {
	Payment    *models.Payment
	Gateway    *models.Gateway
	Validation *ValidationResult
}

// ProcessPayment 处理一次支付请求。
// 流程：校验 → 选网关 → 算手续费 → 落库（processing）→ 调网关 → 提交终态。
// 校验失败时不产生任何持久化记录；网关超时保持 processing 并交给对账任务。
func (s *PaymentService) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*ProcessPaymentResult, error) {
	validation := s.validator.ValidateInput(input.Method, input.Amount, input.TransactionRef, input.Customer)
	if !validation.Valid {
		logger.Warnw("payment_validation_failed",
			"transaction_ref", input.TransactionRef,
			"method", input.Method,
			"errors", validation.Errors,
		)
		return &ProcessPaymentResult{Validation: validation}, fmt.Errorf("%w: %s", ErrValidation, strings.Join(validation.Errors, "; "))
	}

	gw, err := s.gatewaySvc.SelectGateway(input.Method, input.Amount)
	if err != nil {
		return &ProcessPaymentResult{Validation: validation}, err
	}

	// 网关侧校验在落库前执行，被拒绝的支付不产生任何记录
	if provider, rerr := s.registry.Resolve(gw.Code); rerr == nil {
		validateCtx, cancelValidate := context.WithTimeout(ctx, s.opts.ProviderTimeout)
		gwValidation, verr := provider.Validate(validateCtx, gw.ConfigJSON, gateway.ValidateInput{
			TransactionRef: input.TransactionRef,
			Method:         input.Method,
			Amount:         input.Amount,
			CustomerEmail:  input.Customer.Email,
			CustomerPhone:  input.Customer.Phone,
		})
		cancelValidate()
		if verr != nil {
			validation.addError(fmt.Sprintf("gateway validation error: %v", verr))
		} else {
			validation.mergeGatewayResult(gwValidation)
		}
		if !validation.Valid {
			logger.Warnw("payment_gateway_validation_failed",
				"transaction_ref", input.TransactionRef,
				"gateway", gw.Code,
				"errors", validation.Errors,
			)
			return &ProcessPaymentResult{Gateway: gw, Validation: validation}, fmt.Errorf("%w: %s", ErrValidation, strings.Join(validation.Errors, "; "))
		}
	}

	fee := CalculateFee(gw, input.Amount)
	gross := GrossAmount(input.Amount, fee)

	payment := &models.Payment{
		ID:             uuid.NewString(),
		TransactionRef: input.TransactionRef,
		GatewayID:      gw.ID,
		GatewayCode:    gw.Code,
		Method:         input.Method,
		Amount:         input.Amount,
		AdminFee:       fee,
		GrossAmount:    gross,
		RefundedAmount: models.NewMoneyFromInt(0),
		Status:         models.StatusProcessing,
		Note:           input.Note,
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		logger.Errorw("payment_create_failed", "transaction_ref", input.TransactionRef, "error", err)
		return nil, err
	}
	logger.Infow("payment_created",
		"payment_id", payment.ID,
		"transaction_ref", payment.TransactionRef,
		"gateway", gw.Code,
		"gross_amount", gross.String(),
	)

	provider, err := s.registry.Resolve(gw.Code)
	if err != nil {
		// 网关目录和适配器注册不一致，按调用失败落终态
		failed, ferr := s.finishCharge(payment.ID, models.StatusFailed, "", nil, err.Error())
		if ferr != nil {
			return nil, ferr
		}
		return &ProcessPaymentResult{Payment: failed, Gateway: gw, Validation: validation}, nil
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	chargeResult, err := provider.Charge(chargeCtx, gw.ConfigJSON, gateway.ChargeInput{
		PaymentID:      payment.ID,
		TransactionRef: payment.TransactionRef,
		Method:         payment.Method,
		Amount:         gross,
		Note:           payment.Note,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrTimeout) {
			// 结果未知：保持 processing，不盲目重试，延迟对账
			logger.Warnw("payment_charge_timeout", "payment_id", payment.ID, "gateway", gw.Code)
			if qerr := s.queueClient.EnqueuePaymentStatusReconcile(queue.PaymentStatusReconcilePayload{PaymentID: payment.ID}, s.opts.ReconcileDelay); qerr != nil {
				logger.Errorw("payment_reconcile_enqueue_failed", "payment_id", payment.ID, "error", qerr)
			}
			return &ProcessPaymentResult{Payment: payment, Gateway: gw, Validation: validation}, nil
		}
		logger.Warnw("payment_charge_failed", "payment_id", payment.ID, "gateway", gw.Code, "error", err)
		failed, ferr := s.finishCharge(payment.ID, models.StatusFailed, "", nil, err.Error())
		if ferr != nil {
			return nil, ferr
		}
		s.notificationSvc.Notify(payment.ID, constants.NotificationEventPaymentFailed, map[string]interface{}{
			"transaction_ref": payment.TransactionRef,
			"error":           err.Error(),
		})
		return &ProcessPaymentResult{Payment: failed, Gateway: gw, Validation: validation}, nil
	}

	target := chargeResult.Status
	if target != models.StatusSuccess && target != models.StatusFailed {
		// 网关仍在处理中，等异步对账推进终态
		if qerr := s.queueClient.EnqueuePaymentStatusReconcile(queue.PaymentStatusReconcilePayload{PaymentID: payment.ID}, s.opts.ReconcileDelay); qerr != nil {
			logger.Errorw("payment_reconcile_enqueue_failed", "payment_id", payment.ID, "error", qerr)
		}
		if err := s.attachProviderRef(payment.ID, chargeResult.ProviderRef, chargeResult.Raw); err != nil {
			return nil, err
		}
		payment.ProviderRef = chargeResult.ProviderRef
		return &ProcessPaymentResult{Payment: payment, Gateway: gw, Validation: validation}, nil
	}

	updated, err := s.finishCharge(payment.ID, target, chargeResult.ProviderRef, chargeResult.Raw, "")
	if err != nil {
		return nil, err
	}

	event := constants.NotificationEventPaymentFailed
	if target == models.StatusSuccess {
		event = constants.NotificationEventPaymentProcessed
	}
	s.notificationSvc.Notify(updated.ID, event, map[string]interface{}{
		"transaction_ref": updated.TransactionRef,
		"status":          updated.Status.String(),
	})
	logger.Infow("payment_process_done",
		"payment_id", updated.ID,
		"status", updated.Status.String(),
		"provider_ref", updated.ProviderRef,
	)
	return &ProcessPaymentResult{Payment: updated, Gateway: gw, Validation: validation}, nil
}

// GetPayment 获取支付记录
func (s *PaymentService) GetPayment(id string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return payment, nil
}

// ValidatePayment 对已存在的支付做事后校验，含网关侧兼容性检查
func (s *PaymentService) ValidatePayment(ctx context.Context, id string) (*ValidationResult, error) {
	payment, err := s.GetPayment(id)
	if err != nil {
		return nil, err
	}
	result := s.validator.ValidatePayment(payment)

	gw, provider, rerr := s.resolveProvider(payment.GatewayID)
	if rerr != nil {
		result.addWarning(fmt.Sprintf("gateway adapter unavailable: %v", rerr))
		return result, nil
	}
	validateCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	gwValidation, verr := provider.Validate(validateCtx, gw.ConfigJSON, gateway.ValidateInput{
		TransactionRef: payment.TransactionRef,
		Method:         payment.Method,
		Amount:         payment.Amount,
	})
	if verr != nil {
		result.addError(fmt.Sprintf("gateway validation error: %v", verr))
		return result, nil
	}
	result.mergeGatewayResult(gwValidation)
	return result, nil
}

// ListPayments 查询支付列表
func (s *PaymentService) ListPayments(filter repository.PaymentListFilter) ([]models.Payment, int64, error) {
	return s.paymentRepo.List(filter)
}

// ListRefunds 查询支付的退款记录
func (s *PaymentService) ListRefunds(paymentID string) ([]models.RefundRecord, error) {
	payment, err := s.GetPayment(paymentID)
	if err != nil {
		return nil, err
	}
	return s.refundRepo.ListByPaymentID(payment.ID)
}

// CancelPayment 取消处于 processing 且在取消窗口内的支付。
// 已结算的支付不可取消，只能退款。
func (s *PaymentService) CancelPayment(ctx context.Context, id, reason string) (bool, error) {
	payment, err := s.GetPayment(id)
	if err != nil {
		return false, err
	}
	if payment.Status.IsSettled() {
		return false, fmt.Errorf("%w: settled payment must be refunded instead", ErrStateConflict)
	}
	if payment.Status != models.StatusProcessing {
		return false, fmt.Errorf("%w: cannot cancel payment in status %s", ErrStateConflict, payment.Status)
	}
	if s.now().Sub(payment.CreatedAt) > s.opts.CancelWindow {
		return false, fmt.Errorf("%w: cancellation window of %s exceeded", ErrStateConflict, s.opts.CancelWindow)
	}

	gw, provider, err := s.resolveProvider(payment.GatewayID)
	if err != nil {
		return false, err
	}

	cancelCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	if payment.ProviderRef != "" {
		if _, err := provider.Cancel(cancelCtx, gw.ConfigJSON, payment.ProviderRef); err != nil {
			// 取消失败可能是已结算，回查一次状态
			settled, qerr := s.providerSettled(ctx, provider, gw, payment.ProviderRef)
			if qerr == nil && settled {
				logger.Infow("payment_cancel_redirected_to_refund", "payment_id", payment.ID)
				if _, err := s.commitTransition(payment.ID, models.StatusSuccess, func(p *models.Payment) {
					if p.PaidAt == nil {
						now := s.now()
						p.PaidAt = &now
					}
				}); err != nil {
					return false, err
				}
				if _, err := s.RefundPayment(ctx, payment.ID, nil, reason); err != nil {
					return false, err
				}
				return true, nil
			}
			logger.Warnw("payment_cancel_provider_failed", "payment_id", payment.ID, "error", err)
			return false, fmt.Errorf("%w: %v", ErrGatewayCall, err)
		}
	}

	updated, err := s.commitTransition(payment.ID, models.StatusCancelled, func(p *models.Payment) {
		if p.CancelledAt == nil {
			now := s.now()
			p.CancelledAt = &now
		}
		if reason != "" {
			p.Note = appendNote(p.Note, "cancelled: "+reason)
		}
	})
	if err != nil {
		return false, err
	}
	s.notificationSvc.Notify(updated.ID, constants.NotificationEventPaymentCancelled, map[string]interface{}{
		"transaction_ref": updated.TransactionRef,
		"reason":          reason,
	})
	logger.Infow("payment_cancelled", "payment_id", updated.ID, "reason", reason)
	return true, nil
}

// RefundPayment 对已结算的支付发起退款。
// amount 为空表示退剩余全部；累计完成退款不会超过支付总额。
func (s *PaymentService) RefundPayment(ctx context.Context, id string, amount *models.Money, reason string) (*models.RefundRecord, error) {
	payment, err := s.GetPayment(id)
	if err != nil {
		return nil, err
	}
	if !payment.Status.IsSettled() {
		if payment.Status == models.StatusRefunded {
			return nil, fmt.Errorf("%w: payment already fully refunded", ErrLimitExceeded)
		}
		return nil, fmt.Errorf("%w: cannot refund payment in status %s", ErrStateConflict, payment.Status)
	}

	gw, provider, err := s.resolveProvider(payment.GatewayID)
	if err != nil {
		return nil, err
	}
	if !gw.SupportsRefund {
		return nil, fmt.Errorf("%w: gateway %s does not support refunds", ErrStateConflict, gw.Code)
	}

	refunded, err := s.refundRepo.SumCompletedByPaymentID(payment.ID)
	if err != nil {
		return nil, err
	}
	remaining := payment.GrossAmount.Decimal.Sub(refunded.Decimal)
	if !remaining.IsPositive() {
		return nil, fmt.Errorf("%w: nothing left to refund", ErrLimitExceeded)
	}

	var refundAmount models.Money
	if amount == nil {
		refundAmount = models.NewMoneyFromDecimal(remaining)
	} else {
		refundAmount = *amount
		if !refundAmount.Decimal.IsPositive() {
			return nil, fmt.Errorf("%w: refund amount must be positive", ErrValidation)
		}
		if refundAmount.Decimal.GreaterThan(remaining) {
			return nil, fmt.Errorf("%w: refund amount %s exceeds remaining %s", ErrLimitExceeded, refundAmount.String(), remaining.String())
		}
	}

	var record *models.RefundRecord
	refundCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	refundID := uuid.NewString()
	providerResult, err := provider.Refund(refundCtx, gw.ConfigJSON, gateway.RefundInput{
		PaymentID:   payment.ID,
		ProviderRef: payment.ProviderRef,
		RefundID:    refundID,
		Amount:      refundAmount,
		Reason:      reason,
	})
	if err != nil {
		// 网关失败不改动支付记录，仅留一条失败退款做审计
		failedRecord := &models.RefundRecord{
			ID:                 refundID,
			PaymentID:          payment.ID,
			Amount:             refundAmount,
			Reason:             reason,
			Status:             constants.RefundStatusFailed,
			EstimatedArrivalAt: s.now(),
		}
		if cerr := s.refundRepo.Create(failedRecord); cerr != nil {
			logger.Errorw("refund_audit_record_failed", "payment_id", payment.ID, "error", cerr)
		}
		logger.Warnw("payment_refund_provider_failed", "payment_id", payment.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayCall, err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		paymentTx := s.paymentRepo.WithTx(tx)
		refundTx := s.refundRepo.WithTx(tx)

		locked, err := paymentTx.GetByIDForUpdate(payment.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, payment.ID)
		}
		if !locked.Status.IsSettled() {
			if locked.Status == models.StatusRefunded {
				return fmt.Errorf("%w: payment already fully refunded", ErrLimitExceeded)
			}
			return fmt.Errorf("%w: cannot refund payment in status %s", ErrStateConflict, locked.Status)
		}

		committed, err := refundTx.SumCompletedByPaymentID(locked.ID)
		if err != nil {
			return err
		}
		lockedRemaining := locked.GrossAmount.Decimal.Sub(committed.Decimal)
		if refundAmount.Decimal.GreaterThan(lockedRemaining) {
			return fmt.Errorf("%w: refund amount %s exceeds remaining %s", ErrLimitExceeded, refundAmount.String(), lockedRemaining.String())
		}

		record = &models.RefundRecord{
			ID:                 refundID,
			PaymentID:          locked.ID,
			Amount:             refundAmount,
			Reason:             reason,
			Status:             constants.RefundStatusCompleted,
			ProviderRef:        providerResult.ProviderRef,
			EstimatedArrivalAt: s.now().AddDate(0, 0, s.opts.RefundArrivalDays),
		}
		if err := refundTx.Create(record); err != nil {
			return err
		}

		target := models.StatusPartialRefunded
		if lockedRemaining.Sub(refundAmount.Decimal).IsZero() {
			target = models.StatusRefunded
		}
		if !locked.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s -> %s not allowed", ErrStateConflict, locked.Status, target)
		}
		locked.Status = target
		locked.RefundedAmount = models.NewMoneyFromDecimal(committed.Decimal.Add(refundAmount.Decimal))
		if target == models.StatusRefunded {
			now := s.now()
			locked.RefundedAt = &now
		}
		return paymentTx.Update(locked)
	})
	if err != nil {
		return nil, err
	}

	s.notificationSvc.Notify(payment.ID, constants.NotificationEventPaymentRefunded, map[string]interface{}{
		"transaction_ref": payment.TransactionRef,
		"amount":          refundAmount.String(),
		"refund_id":       record.ID,
	})
	logger.Infow("payment_refunded",
		"payment_id", payment.ID,
		"refund_id", record.ID,
		"amount", refundAmount.String(),
	)
	return record, nil
}

// finishCharge 提交扣款结果对应的终态
func (s *PaymentService) finishCharge(id string, target models.Status, providerRef string, raw map[string]interface{}, failMessage string) (*models.Payment, error) {
	return s.commitTransition(id, target, func(p *models.Payment) {
		if providerRef != "" {
			p.ProviderRef = providerRef
		}
		if raw != nil {
			p.ProviderPayload = models.JSON(raw)
		}
		if target == models.StatusSuccess && p.PaidAt == nil {
			now := s.now()
			p.PaidAt = &now
		}
		if failMessage != "" {
			p.Note = appendNote(p.Note, "failed: "+failMessage)
		}
	})
}

// attachProviderRef 记录第三方流水号，不改变状态
func (s *PaymentService) attachProviderRef(id, providerRef string, raw map[string]interface{}) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.paymentRepo.WithTx(tx)
		locked, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if providerRef != "" {
			locked.ProviderRef = providerRef
		}
		if raw != nil {
			locked.ProviderPayload = models.JSON(raw)
		}
		return repo.Update(locked)
	})
}

// commitTransition 在行锁内校验并提交一次状态流转
func (s *PaymentService) commitTransition(id string, target models.Status, mutate func(p *models.Payment)) (*models.Payment, error) {
	var updated *models.Payment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.paymentRepo.WithTx(tx)
		locked, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if locked.Status == target {
			// 幂等提交：状态不变，但网关引用等非状态字段仍需落库
			if mutate != nil {
				mutate(locked)
				if err := repo.Update(locked); err != nil {
					return err
				}
			}
			updated = locked
			return nil
		}
		if !locked.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s -> %s not allowed", ErrStateConflict, locked.Status, target)
		}
		locked.Status = target
		if mutate != nil {
			mutate(locked)
		}
		if err := repo.Update(locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PaymentService) resolveProvider(gatewayID uint) (*models.Gateway, gateway.Provider, error) {
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

func (s *PaymentService) providerSettled(ctx context.Context, provider gateway.Provider, gw *models.Gateway, providerRef string) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	result, err := provider.QueryStatus(queryCtx, gw.ConfigJSON, providerRef)
	if err != nil {
		return false, err
	}
	return result.Status.IsSettled(), nil
}

func appendNote(note, extra string) string {
	if strings.TrimSpace(note) == "" {
		return extra
	}
	return note + "; " + extra
}
