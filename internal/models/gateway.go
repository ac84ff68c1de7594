package models

import (
	"time"

	"gorm.io/gorm"
)

// Gateway 支付网关配置
type Gateway struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                    // 主键
	Code             string         `gorm:"uniqueIndex;not null" json:"code"`                        // 网关编码（midtrans/xendit/doku）
	Name             string         `gorm:"not null" json:"name"`                                    // 网关名称
	SupportedMethods StringArray    `gorm:"type:json;not null" json:"supported_methods"`             // 支持的支付方式
	FeePercent       Money          `gorm:"type:decimal(6,2);not null;default:0" json:"fee_percent"` // 手续费比例（百分比）
	FeeFixed         Money          `gorm:"type:decimal(20,2);not null;default:0" json:"fee_fixed"`  // 固定手续费
	MinAmount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"min_amount"` // 单笔最小金额
	MaxAmount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"max_amount"` // 单笔最大金额
	SupportsRefund   bool           `gorm:"not null;default:false" json:"supports_refund"`           // 是否支持退款
	ConfigJSON       JSON           `gorm:"type:json" json:"config_json"`                            // 网关配置
	IsActive         bool           `gorm:"not null;default:true" json:"is_active"`                  // 是否启用
	SortOrder        int            `gorm:"not null;default:0" json:"sort_order"`                    // 排序
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                 // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                          // 软删除时间
}

// TableName 指定表名
func (Gateway) TableName() string {
	return "gateways"
}

// SupportsMethod 判断网关是否支持指定支付方式
func (g *Gateway) SupportsMethod(method string) bool {
	return g.SupportedMethods.Contains(method)
}

// AmountInRange 判断金额是否在网关限额内
func (g *Gateway) AmountInRange(amount Money) bool {
	if amount.Decimal.LessThan(g.MinAmount.Decimal) {
		return false
	}
	if g.MaxAmount.Decimal.IsPositive() && amount.Decimal.GreaterThan(g.MaxAmount.Decimal) {
		return false
	}
	return true
}
