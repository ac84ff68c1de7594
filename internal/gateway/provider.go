package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/payflow-core/internal/models"
)

var (
	// ErrTimeout 网关调用超时，支付结果未知
	ErrTimeout = errors.New("gateway call timed out")
	// ErrUnavailable 网关不可用
	ErrUnavailable = errors.New("gateway unavailable")
	// ErrDeclined 网关明确拒绝本次交易
	ErrDeclined = errors.New("gateway declined the transaction")
	// ErrUnknownGateway 未注册的网关编码
	ErrUnknownGateway = errors.New("unknown gateway code")
)

// ValidateInput 扣款前校验输入
type ValidateInput struct {
	TransactionRef string
	Method         string
	Amount         models.Money
	CustomerEmail  string
	CustomerPhone  string
}

// ValidateResult 网关侧校验结果。
// Errors 非空表示网关拒绝处理该笔支付，Warnings 不阻断流程。
type ValidateResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ChargeInput 发起扣款输入
type ChargeInput struct {
	PaymentID      string
	TransactionRef string
	Method         string
	Amount         models.Money
	Note           string
}

// ChargeResult 发起扣款结果
type ChargeResult struct {
	ProviderRef string
	Status      models.Status
	Raw         map[string]interface{}
}

// StatusResult 状态查询结果
type StatusResult struct {
	Status      models.Status
	ProviderRef string
	UpdatedAt   time.Time
	Raw         map[string]interface{}
}

// CancelResult 取消结果
type CancelResult struct {
	ProviderRef string
	Raw         map[string]interface{}
}

// RefundInput 退款输入
type RefundInput struct {
	PaymentID   string
	ProviderRef string
	RefundID    string
	Amount      models.Money
	Reason      string
}

// RefundResult 退款结果
type RefundResult struct {
	ProviderRef string
	Raw         map[string]interface{}
}

// Provider 支付网关适配器接口
type Provider interface {
	// Code 返回网关编码
	Code() string
	// ValidateConfig 校验网关配置完整性
	ValidateConfig(cfg models.JSON) error
	// Validate 扣款前由网关侧校验支付输入
	Validate(ctx context.Context, cfg models.JSON, input ValidateInput) (*ValidateResult, error)
	// Charge 发起扣款
	Charge(ctx context.Context, cfg models.JSON, input ChargeInput) (*ChargeResult, error)
	// QueryStatus 查询第三方支付状态
	QueryStatus(ctx context.Context, cfg models.JSON, providerRef string) (*StatusResult, error)
	// Cancel 取消未结算的支付
	Cancel(ctx context.Context, cfg models.JSON, providerRef string) (*CancelResult, error)
	// Refund 对已结算的支付发起退款
	Refund(ctx context.Context, cfg models.JSON, input RefundInput) (*RefundResult, error)
}
