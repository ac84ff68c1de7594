package repository

import (
	"errors"
	"strings"

	"github.com/payflow-core/internal/constants"
	"github.com/payflow-core/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	Update(payment *models.Payment) error
	GetByID(id string) (*models.Payment, error)
	GetByIDForUpdate(id string) (*models.Payment, error)
	GetByTransactionRef(ref string) (*models.Payment, error)
	List(filter PaymentListFilter) ([]models.Payment, int64, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// Update 更新支付记录
func (r *GormPaymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

// GetByID 根据 ID 获取支付记录
func (r *GormPaymentRepository) GetByID(id string) (*models.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.Where("id = ?", id).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByIDForUpdate 根据 ID 获取支付记录并加行锁，必须在事务内调用
func (r *GormPaymentRepository) GetByIDForUpdate(id string) (*models.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var payment models.Payment
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByTransactionRef 根据交易参考号获取支付记录
func (r *GormPaymentRepository) GetByTransactionRef(ref string) (*models.Payment, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	var payment models.Payment
	result := r.db.Where("transaction_ref = ?", ref).Limit(1).Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

// List 查询支付列表
func (r *GormPaymentRepository) List(filter PaymentListFilter) ([]models.Payment, int64, error) {
	query := r.db.Model(&models.Payment{})

	if filter.TransactionRef != "" {
		query = query.Where("transaction_ref = ?", filter.TransactionRef)
	}
	if filter.GatewayCode != "" {
		query = query.Where("gateway_code = ?", filter.GatewayCode)
	}
	if filter.Method != "" {
		query = query.Where("method = ?", filter.Method)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	if filter.AmountMin != nil {
		query = query.Where("amount >= ?", filter.AmountMin.Decimal)
	}
	if filter.AmountMax != nil {
		query = query.Where("amount <= ?", filter.AmountMax.Decimal)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(orderClause(filter.SortBy, filter.SortDir))
	query = applyPagination(query, filter.Page, filter.PageSize)

	var payments []models.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// orderClause 生成排序子句。
// 未显式指定方向时，日期和金额倒序（最新、最大优先），状态和方式正序。
func orderClause(sortBy, dir string) string {
	column := "created_at"
	defaultDir := "desc"
	switch sortBy {
	case constants.SortByAmount:
		column = "amount"
	case constants.SortByStatus:
		column = "status"
		defaultDir = "asc"
	case constants.SortByMethod:
		column = "method"
		defaultDir = "asc"
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "asc":
		return column + " asc"
	case "desc":
		return column + " desc"
	}
	return column + " " + defaultDir
}
