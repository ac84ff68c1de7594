package service

import (
	"github.com/payflow-core/internal/logger"
	"github.com/payflow-core/internal/queue"
)

// NotificationService 支付事件通知服务。
// 通知为 fire-and-forget：失败只记录日志，绝不阻塞支付流转。
type NotificationService struct {
	queueClient *queue.Client
}

// NewNotificationService 创建通知服务
func NewNotificationService(queueClient *queue.Client) *NotificationService {
	return &NotificationService{queueClient: queueClient}
}

// Notify 发出支付事件通知
func (s *NotificationService) Notify(paymentID, eventType string, payload map[string]interface{}) {
	logger.Infow("payment_event",
		"payment_id", paymentID,
		"event_type", eventType,
	)
	if s == nil || s.queueClient == nil {
		return
	}
	err := s.queueClient.EnqueueNotificationDispatch(queue.NotificationDispatchPayload{
		PaymentID: paymentID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		logger.Warnw("payment_event_enqueue_failed",
			"payment_id", paymentID,
			"event_type", eventType,
			"error", err,
		)
	}
}
