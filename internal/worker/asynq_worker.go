package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/payflow-core/internal/logger"
	"github.com/payflow-core/internal/provider"
	"github.com/payflow-core/internal/queue"
	"github.com/payflow-core/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskNotificationDispatch, c.handleNotificationDispatch)
	mux.HandleFunc(queue.TaskPaymentStatusReconcile, c.handlePaymentStatusReconcile)
}

// handleNotificationDispatch 消费支付事件通知任务。
// 通知只做投递记录，失败不重试到影响支付链路的程度。
func (c *Consumer) handleNotificationDispatch(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.NotificationDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_notification_unmarshal_failed", "error", err)
		return err
	}
	if payload.PaymentID == "" || payload.EventType == "" {
		logger.Debugw("worker_notification_skip_invalid_payload",
			"payment_id", payload.PaymentID,
			"event_type", payload.EventType,
		)
		return nil
	}
	logger.Infow("worker_notification_dispatched",
		"payment_id", payload.PaymentID,
		"event_type", payload.EventType,
	)
	return nil
}

// handlePaymentStatusReconcile 消费状态对账任务。
// 网关调用超时后支付停留在 processing，这里强制回查一次网关状态。
func (c *Consumer) handlePaymentStatusReconcile(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.PaymentStatusReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_reconcile_unmarshal_failed", "error", err)
		return err
	}
	if payload.PaymentID == "" {
		return nil
	}
	status, err := c.StatusSyncService.CheckStatus(ctx, payload.PaymentID, true)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			logger.Debugw("worker_reconcile_skip_payment_not_found", "payment_id", payload.PaymentID)
			return nil
		}
		logger.Warnw("worker_reconcile_failed", "payment_id", payload.PaymentID, "error", err)
		return err
	}
	logger.Infow("worker_reconcile_done",
		"payment_id", payload.PaymentID,
		"status", status.String(),
	)
	return nil
}
