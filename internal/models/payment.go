package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment 支付记录
type Payment struct {
	ID              string         `gorm:"primarykey;size:36" json:"id"`                                 // 主键（UUID）
	TransactionRef  string         `gorm:"uniqueIndex;not null" json:"transaction_ref"`                  // 交易参考号
	GatewayID       uint           `gorm:"index;not null" json:"gateway_id"`                             // 网关ID
	GatewayCode     string         `gorm:"index;not null" json:"gateway_code"`                           // 网关编码
	Method          string         `gorm:"index;not null" json:"method"`                                 // 支付方式
	Amount          Money          `gorm:"type:decimal(20,2);not null" json:"amount"`                    // 原始金额
	AdminFee        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"admin_fee"`       // 手续费金额
	GrossAmount     Money          `gorm:"type:decimal(20,2);not null" json:"gross_amount"`              // 支付总额（含手续费）
	RefundedAmount  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"refunded_amount"` // 已退款金额
	Status          Status         `gorm:"index;not null" json:"status"`                                 // 支付状态
	ProviderRef     string         `gorm:"index" json:"provider_ref"`                                    // 第三方流水号
	ProviderPayload JSON           `gorm:"type:json" json:"provider_payload"`                            // 第三方返回数据
	Note            string         `gorm:"type:text" json:"note"`                                       // 备注
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt       time.Time      `gorm:"index" json:"updated_at"`                                      // 更新时间
	StatusSyncedAt  *time.Time     `gorm:"index" json:"status_synced_at"`                                // 最近状态同步时间
	PaidAt          *time.Time     `gorm:"index" json:"paid_at"`                                         // 支付时间
	CancelledAt     *time.Time     `json:"cancelled_at"`                                                 // 取消时间
	RefundedAt      *time.Time     `json:"refunded_at"`                                                  // 全额退款时间
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                                               // 软删除时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// RemainingRefundable 返回剩余可退金额
func (p *Payment) RemainingRefundable() Money {
	return p.GrossAmount.Sub(p.RefundedAmount)
}
