package service

import (
	"fmt"
	"strings"

	"github.com/payflow-core/internal/constants"
	"github.com/payflow-core/internal/gateway"
	"github.com/payflow-core/internal/models"

	"github.com/shopspring/decimal"
)

// CustomerContext 支付发起方的客户上下文
type CustomerContext struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ValidationResult 校验结果，每次校验重新生成
type ValidationResult struct {
	Valid           bool     `json:"valid"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

func newValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:           true,
		Errors:          []string{},
		Warnings:        []string{},
		Recommendations: []string{},
	}
}

func (r *ValidationResult) addError(message string) {
	r.Valid = false
	r.Errors = append(r.Errors, message)
}

func (r *ValidationResult) addWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

func (r *ValidationResult) addRecommendation(message string) {
	r.Recommendations = append(r.Recommendations, message)
}

// mergeGatewayResult 合并网关侧校验结果
func (r *ValidationResult) mergeGatewayResult(gr *gateway.ValidateResult) {
	if gr == nil {
		return
	}
	for _, e := range gr.Errors {
		r.addError(e)
	}
	for _, w := range gr.Warnings {
		r.addWarning(w)
	}
	if !gr.Valid && len(gr.Errors) == 0 {
		r.addError("gateway validation failed")
	}
}

// ValidatorOptions 校验阈值配置
type ValidatorOptions struct {
	MaxAmount         models.Money
	LargeAmountRatio  float64 // 大额提示阈值（相对上限）
	FeeWarningPercent float64 // 手续费占总额比例提示阈值（百分比）
}

// PaymentValidator 支付前置与事后校验
type PaymentValidator struct {
	gatewaySvc *GatewayService
	opts       ValidatorOptions
}

// NewPaymentValidator 创建校验器
func NewPaymentValidator(gatewaySvc *GatewayService, opts ValidatorOptions) *PaymentValidator {
	if opts.FeeWarningPercent <= 0 {
		opts.FeeWarningPercent = 10
	}
	if opts.LargeAmountRatio <= 0 {
		opts.LargeAmountRatio = 0.01
	}
	return &PaymentValidator{gatewaySvc: gatewaySvc, opts: opts}
}

// ValidateInput 支付前置校验。
// 任一阻断项失败即视为无效，后续不会产生任何持久化变更；
// 警告与建议不会阻止支付流程。
func (v *PaymentValidator) ValidateInput(method string, amount models.Money, transactionRef string, customer CustomerContext) *ValidationResult {
	result := newValidationResult()

	if strings.TrimSpace(method) == "" {
		result.addError("payment method is required")
	} else if !isSupportedMethod(method) {
		result.addError(fmt.Sprintf("unsupported payment method: %s", method))
	}

	if !amount.Decimal.IsPositive() {
		result.addError("amount must be positive")
	} else if amount.Decimal.GreaterThan(v.opts.MaxAmount.Decimal) {
		result.addError(fmt.Sprintf("amount exceeds system ceiling %s", v.opts.MaxAmount.String()))
	}

	if strings.TrimSpace(transactionRef) == "" {
		result.addError("transaction reference is required")
	}
	if strings.TrimSpace(customer.Name) == "" {
		result.addError("customer name is required")
	}
	if strings.TrimSpace(customer.Email) == "" {
		result.addError("customer email is required")
	}

	if strings.TrimSpace(customer.Phone) == "" {
		result.addWarning("customer phone is missing")
	}

	// 阻断项已失败时跳过网关检查，避免对非法金额做选路
	if result.Valid {
		gw, err := v.gatewaySvc.SelectGateway(method, amount)
		if err != nil {
			result.addError(fmt.Sprintf("no gateway available for method %s and amount %s", method, amount.String()))
		} else {
			v.checkAmountHints(result, gw, amount)
		}
	}

	return result
}

// ValidatePayment 对已持久化的支付做事后校验
func (v *PaymentValidator) ValidatePayment(payment *models.Payment) *ValidationResult {
	result := newValidationResult()
	if payment == nil {
		result.addError("payment not found")
		return result
	}

	if !isSupportedMethod(payment.Method) {
		result.addError(fmt.Sprintf("unsupported payment method: %s", payment.Method))
	}
	if !payment.Amount.Decimal.IsPositive() {
		result.addError("amount must be positive")
	}
	if !payment.Status.Valid() {
		result.addError(fmt.Sprintf("unknown payment status: %s", payment.Status))
	}

	expectedGross := payment.Amount.Decimal.Add(payment.AdminFee.Decimal)
	if !payment.GrossAmount.Decimal.Equal(expectedGross) {
		result.addError("gross amount does not equal principal plus admin fee")
	}
	if payment.RefundedAmount.Decimal.GreaterThan(payment.GrossAmount.Decimal) {
		result.addError("refunded amount exceeds gross amount")
	}

	v.feeRatioHint(result, payment.AdminFee, payment.GrossAmount)
	return result
}

func (v *PaymentValidator) checkAmountHints(result *ValidationResult, gw *models.Gateway, amount models.Money) {
	fee := CalculateFee(gw, amount)
	gross := GrossAmount(amount, fee)
	v.feeRatioHint(result, fee, gross)

	threshold := v.opts.MaxAmount.Decimal.Mul(decimal.NewFromFloat(v.opts.LargeAmountRatio))
	if threshold.IsPositive() && amount.Decimal.GreaterThan(threshold) {
		result.addRecommendation("large amount, additional verification recommended")
	}
}

func (v *PaymentValidator) feeRatioHint(result *ValidationResult, fee, gross models.Money) {
	if !gross.Decimal.IsPositive() {
		return
	}
	ratio := fee.Decimal.Div(gross.Decimal).Mul(decimal.NewFromInt(100))
	if ratio.GreaterThan(decimal.NewFromFloat(v.opts.FeeWarningPercent)) {
		result.addWarning(fmt.Sprintf("admin fee is %s%% of gross amount", ratio.Round(2).String()))
	}
}

func isSupportedMethod(method string) bool {
	for _, m := range constants.SupportedMethods {
		if m == method {
			return true
		}
	}
	return false
}
