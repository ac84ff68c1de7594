package service

import (
	"fmt"

	"github.com/payflow-core/internal/models"
	"github.com/payflow-core/internal/repository"
)

// GatewayService 网关目录与选择服务
type GatewayService struct {
	gatewayRepo repository.GatewayRepository
}

// NewGatewayService 创建网关服务
func NewGatewayService(gatewayRepo repository.GatewayRepository) *GatewayService {
	return &GatewayService{gatewayRepo: gatewayRepo}
}

// ListActive 获取启用的网关目录
func (s *GatewayService) ListActive() ([]models.Gateway, error) {
	return s.gatewayRepo.ListActive()
}

// ListAll 获取全部网关
func (s *GatewayService) ListAll() ([]models.Gateway, error) {
	return s.gatewayRepo.ListAll()
}

// GetByCode 根据编码获取网关
func (s *GatewayService) GetByCode(code string) (*models.Gateway, error) {
	return s.gatewayRepo.GetByCode(code)
}

// GetByID 根据 ID 获取网关
func (s *GatewayService) GetByID(id uint) (*models.Gateway, error) {
	return s.gatewayRepo.GetByID(id)
}

// SelectGateway 选择手续费最低的可用网关。
// 候选条件：启用、支持该支付方式、金额在网关限额内；
// 手续费相同时按目录顺序取先注册的网关。
func (s *GatewayService) SelectGateway(method string, amount models.Money) (*models.Gateway, error) {
	gateways, err := s.gatewayRepo.ListActive()
	if err != nil {
		return nil, err
	}

	var best *models.Gateway
	var bestFee models.Money
	for i := range gateways {
		g := &gateways[i]
		if !g.SupportsMethod(method) {
			continue
		}
		if !g.AmountInRange(amount) {
			continue
		}
		fee := CalculateFee(g, amount)
		if best == nil || fee.Decimal.LessThan(bestFee.Decimal) {
			best = g
			bestFee = fee
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: method=%s amount=%s", ErrGatewayUnavailable, method, amount.String())
	}
	return best, nil
}
