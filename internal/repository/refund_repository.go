package repository

import (
	"strings"

	"github.com/payflow-core/internal/constants"
	"github.com/payflow-core/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RefundRepository 退款记录数据访问接口
type RefundRepository interface {
	Create(record *models.RefundRecord) error
	Update(record *models.RefundRecord) error
	ListByPaymentID(paymentID string) ([]models.RefundRecord, error)
	SumCompletedByPaymentID(paymentID string) (models.Money, error)
	List(filter RefundListFilter) ([]models.RefundRecord, int64, error)
	WithTx(tx *gorm.DB) *GormRefundRepository
}

// GormRefundRepository GORM 实现
type GormRefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款仓库
func NewRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRefundRepository) WithTx(tx *gorm.DB) *GormRefundRepository {
	if tx == nil {
		return r
	}
	return &GormRefundRepository{db: tx}
}

// Create 创建退款记录
func (r *GormRefundRepository) Create(record *models.RefundRecord) error {
	return r.db.Create(record).Error
}

// Update 更新退款记录
func (r *GormRefundRepository) Update(record *models.RefundRecord) error {
	return r.db.Save(record).Error
}

// ListByPaymentID 获取支付的退款记录
func (r *GormRefundRepository) ListByPaymentID(paymentID string) ([]models.RefundRecord, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return []models.RefundRecord{}, nil
	}
	var records []models.RefundRecord
	if err := r.db.Where("payment_id = ?", paymentID).Order("created_at asc, id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// SumCompletedByPaymentID 计算已完成退款的累计金额
func (r *GormRefundRepository) SumCompletedByPaymentID(paymentID string) (models.Money, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return models.NewMoneyFromInt(0), nil
	}
	var raw decimal.NullDecimal
	err := r.db.Model(&models.RefundRecord{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("payment_id = ? AND status = ?", paymentID, constants.RefundStatusCompleted).
		Scan(&raw).Error
	if err != nil {
		return models.NewMoneyFromInt(0), err
	}
	if !raw.Valid {
		return models.NewMoneyFromInt(0), nil
	}
	return models.NewMoneyFromDecimal(raw.Decimal), nil
}

// List 查询退款记录列表
func (r *GormRefundRepository) List(filter RefundListFilter) ([]models.RefundRecord, int64, error) {
	query := r.db.Model(&models.RefundRecord{})
	if filter.PaymentID != "" {
		query = query.Where("payment_id = ?", filter.PaymentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at desc, id desc")
	query = applyPagination(query, filter.Page, filter.PageSize)

	var records []models.RefundRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
