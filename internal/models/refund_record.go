package models

import (
	"time"

	"gorm.io/gorm"
)

// RefundRecord 退款记录
type RefundRecord struct {
	ID                 string         `gorm:"primarykey;size:36" json:"id"`                 // 主键（UUID）
	PaymentID          string         `gorm:"index;size:36;not null" json:"payment_id"`     // 支付ID
	Amount             Money          `gorm:"type:decimal(20,2);not null" json:"amount"`    // 退款金额
	Reason             string         `gorm:"type:text" json:"reason"`                      // 退款原因
	Status             string         `gorm:"index;not null" json:"status"`                 // 退款状态
	ProviderRef        string         `gorm:"index" json:"provider_ref"`                    // 第三方退款流水号
	EstimatedArrivalAt time.Time      `json:"estimated_arrival_at"`                         // 预计到账时间
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                      // 创建时间
	UpdatedAt          time.Time      `json:"updated_at"`                                   // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                               // 软删除时间
}

// TableName 指定表名
func (RefundRecord) TableName() string {
	return "refund_records"
}
