package repository

import (
	"time"

	"github.com/payflow-core/internal/models"
)

// PaymentListFilter 查询支付列表的过滤条件
type PaymentListFilter struct {
	Page           int
	PageSize       int
	TransactionRef string
	GatewayCode    string
	Method         string
	Status         string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	AmountMin      *models.Money
	AmountMax      *models.Money
	SortBy         string // date/amount/status/method
	SortDir        string // asc/desc，空值时 date 与 amount 默认倒序
}

// RefundListFilter 查询退款记录的过滤条件
type RefundListFilter struct {
	Page      int
	PageSize  int
	PaymentID string
	Status    string
}
