package repository

import (
	"errors"
	"strings"

	"github.com/payflow-core/internal/models"

	"gorm.io/gorm"
)

// GatewayRepository 网关数据访问接口
type GatewayRepository interface {
	Create(gateway *models.Gateway) error
	Update(gateway *models.Gateway) error
	GetByID(id uint) (*models.Gateway, error)
	GetByCode(code string) (*models.Gateway, error)
	ListActive() ([]models.Gateway, error)
	ListAll() ([]models.Gateway, error)
	WithTx(tx *gorm.DB) *GormGatewayRepository
}

// GormGatewayRepository GORM 实现
type GormGatewayRepository struct {
	db *gorm.DB
}

// NewGatewayRepository 创建网关仓库
func NewGatewayRepository(db *gorm.DB) *GormGatewayRepository {
	return &GormGatewayRepository{db: db}
}

// WithTx 绑定事务
func (r *GormGatewayRepository) WithTx(tx *gorm.DB) *GormGatewayRepository {
	if tx == nil {
		return r
	}
	return &GormGatewayRepository{db: tx}
}

// Create 创建网关
func (r *GormGatewayRepository) Create(gateway *models.Gateway) error {
	return r.db.Create(gateway).Error
}

// Update 更新网关
func (r *GormGatewayRepository) Update(gateway *models.Gateway) error {
	return r.db.Save(gateway).Error
}

// GetByID 根据 ID 获取网关
func (r *GormGatewayRepository) GetByID(id uint) (*models.Gateway, error) {
	var gateway models.Gateway
	if err := r.db.First(&gateway, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &gateway, nil
}

// GetByCode 根据编码获取网关
func (r *GormGatewayRepository) GetByCode(code string) (*models.Gateway, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var gateway models.Gateway
	result := r.db.Where("code = ?", code).Limit(1).Find(&gateway)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &gateway, nil
}

// ListActive 获取启用的网关，按注册顺序排序
func (r *GormGatewayRepository) ListActive() ([]models.Gateway, error) {
	var gateways []models.Gateway
	if err := r.db.Where("is_active = ?", true).Order("sort_order asc, id asc").Find(&gateways).Error; err != nil {
		return nil, err
	}
	return gateways, nil
}

// ListAll 获取全部网关
func (r *GormGatewayRepository) ListAll() ([]models.Gateway, error) {
	var gateways []models.Gateway
	if err := r.db.Order("sort_order asc, id asc").Find(&gateways).Error; err != nil {
		return nil, err
	}
	return gateways, nil
}
