package service

import (
	"github.com/payflow-core/internal/models"

	"github.com/shopspring/decimal"
)

// CalculateFee 按网关费率计算手续费，四舍五入到整数货币单位。
// fee = round(amount * feePercent / 100 + feeFixed)
func CalculateFee(gateway *models.Gateway, amount models.Money) models.Money {
	if gateway == nil {
		return models.NewMoneyFromInt(0)
	}
	percent := amount.Decimal.
		Mul(gateway.FeePercent.Decimal).
		Div(decimal.NewFromInt(100))
	fee := percent.Add(gateway.FeeFixed.Decimal).Round(0)
	return models.NewMoneyFromDecimal(fee)
}

// GrossAmount 计算含手续费的支付总额
func GrossAmount(amount, fee models.Money) models.Money {
	return amount.Add(fee)
}
