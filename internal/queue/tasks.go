package queue

import (
	"encoding/json"

	"github.com/payflow-core/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskNotificationDispatch 支付事件通知任务
	TaskNotificationDispatch = constants.TaskNotificationDispatch
	// TaskPaymentStatusReconcile 支付状态对账任务
	TaskPaymentStatusReconcile = constants.TaskPaymentStatusReconcile
)

// NotificationDispatchPayload 支付事件通知任务载荷
type NotificationDispatchPayload struct {
	PaymentID string                 `json:"payment_id"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
}

// PaymentStatusReconcilePayload 支付状态对账任务载荷
type PaymentStatusReconcilePayload struct {
	PaymentID string `json:"payment_id"`
}

// NewNotificationDispatchTask 创建支付事件通知任务
func NewNotificationDispatchTask(payload NotificationDispatchPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDispatch, body), nil
}

// NewPaymentStatusReconcileTask 创建支付状态对账任务
func NewPaymentStatusReconcileTask(payload PaymentStatusReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentStatusReconcile, body), nil
}
