package main

import (
	"github.com/payflow-core/internal/config"
	"github.com/payflow-core/internal/constants"
	"github.com/payflow-core/internal/logger"
	"github.com/payflow-core/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 默认网关目录
	gateways := []models.Gateway{
		{
			Code: constants.GatewayMidtrans,
			Name: "Midtrans",
			SupportedMethods: models.StringArray{
				constants.MethodCreditCard,
				constants.MethodDebitCard,
				constants.MethodBankTransfer,
				constants.MethodEWallet,
			},
			FeePercent:     models.NewMoneyFromDecimal(decimal.NewFromFloat(2.9)),
			FeeFixed:       models.NewMoneyFromInt(2000),
			MinAmount:      models.NewMoneyFromInt(10_000),
			MaxAmount:      models.NewMoneyFromInt(500_000_000),
			SupportsRefund: true,
			IsActive:       true,
			SortOrder:      1,
		},
		{
			Code: constants.GatewayXendit,
			Name: "Xendit",
			SupportedMethods: models.StringArray{
				constants.MethodVirtualAccount,
				constants.MethodEWallet,
				constants.MethodBankTransfer,
			},
			FeePercent:     models.NewMoneyFromDecimal(decimal.NewFromFloat(2.5)),
			FeeFixed:       models.NewMoneyFromInt(3000),
			MinAmount:      models.NewMoneyFromInt(10_000),
			MaxAmount:      models.NewMoneyFromInt(1_000_000_000),
			SupportsRefund: true,
			IsActive:       true,
			SortOrder:      2,
		},
		{
			Code: constants.GatewayDoku,
			Name: "DOKU",
			SupportedMethods: models.StringArray{
				constants.MethodCreditCard,
				constants.MethodVirtualAccount,
				constants.MethodBankTransfer,
			},
			FeePercent:     models.NewMoneyFromDecimal(decimal.NewFromFloat(3.0)),
			FeeFixed:       models.NewMoneyFromInt(2500),
			MinAmount:      models.NewMoneyFromInt(5_000),
			MaxAmount:      models.NewMoneyFromInt(300_000_000),
			SupportsRefund: false,
			IsActive:       true,
			SortOrder:      3,
		},
	}

	for _, gw := range gateways {
		var existing models.Gateway
		if err := models.DB.Where("code = ?", gw.Code).First(&existing).Error; err != nil {
			if err := models.DB.Create(&gw).Error; err != nil {
				stdLog.Printf("Failed to create gateway %s: %v", gw.Code, err)
			} else {
				stdLog.Printf("Created gateway: %s", gw.Code)
			}
		} else {
			stdLog.Printf("Gateway already exists: %s", gw.Code)
		}
	}

	stdLog.Printf("Seed completed")
}
