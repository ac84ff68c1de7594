package models

import "github.com/payflow-core/internal/constants"

// Status 支付状态
type Status string

const (
	StatusCreated        Status = constants.PaymentStatusCreated
	StatusProcessing     Status = constants.PaymentStatusProcessing
	StatusSuccess        Status = constants.PaymentStatusSuccess
	StatusFailed         Status = constants.PaymentStatusFailed
	StatusCancelled      Status = constants.PaymentStatusCancelled
	StatusRefunded       Status = constants.PaymentStatusRefunded
	StatusPartialRefunded Status = constants.PaymentStatusPartialRefunded
)

// statusTransitions 状态流转表，所有状态变更必须经过该表
var statusTransitions = map[Status][]Status{
	StatusCreated:        {StatusProcessing},
	StatusProcessing:     {StatusSuccess, StatusFailed, StatusCancelled},
	StatusSuccess:        {StatusRefunded, StatusPartialRefunded},
	StatusPartialRefunded: {StatusRefunded, StatusPartialRefunded},
	StatusFailed:         {},
	StatusCancelled:      {},
	StatusRefunded:       {},
}

// String 返回状态字符串
func (s Status) String() string {
	return string(s)
}

// Valid 判断是否为已知状态
func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// IsTerminal 判断是否为终态（不再有出边，退款态除外）
func (s Status) IsTerminal() bool {
	targets, ok := statusTransitions[s]
	return ok && len(targets) == 0
}

// IsSettled 判断是否已结算（成功或已部分退款）
func (s Status) IsSettled() bool {
	return s == StatusSuccess || s == StatusPartialRefunded
}

// CanTransitionTo 判断能否流转到目标状态
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range statusTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}
