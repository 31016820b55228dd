package main

import (
	"github.com/ceremonyhouse/splitpay/internal/config"
	"github.com/ceremonyhouse/splitpay/internal/constants"
	"github.com/ceremonyhouse/splitpay/internal/logger"
	"github.com/ceremonyhouse/splitpay/internal/models"

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

	// 示例馆方
	pixKey := "11122233344"
	pixKeyType := constants.PixKeyTypeCPF
	pixHolder := "Casa Aurora Cerimônias"
	houses := []models.House{
		{
			Name:          "Casa Aurora",
			ContactEmail:  "contato@casaaurora.example",
			PixKey:        &pixKey,
			PixKeyType:    &pixKeyType,
			PixHolderName: &pixHolder,
		},
		{
			Name:         "Espaço Jardim das Flores",
			ContactEmail: "financeiro@jardimdasflores.example",
		},
		{
			Name:           "Villa Celebração",
			ContactEmail:   "admin@villacelebracao.example",
			HasMPConnected: true,
		},
	}

	for i := range houses {
		var existing models.House
		if err := models.DB.Where("name = ?", houses[i].Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&houses[i]).Error; err != nil {
				stdLog.Printf("Failed to create house %s: %v", houses[i].Name, err)
			} else {
				stdLog.Printf("Created house: %s", houses[i].Name)
			}
		} else {
			houses[i] = existing
			stdLog.Printf("House already exists: %s", houses[i].Name)
		}
	}

	// 示例分账：12% 平台分成，余数归馆方
	commission := models.NewPercentFromFloat(12)
	rate := decimal.NewFromFloat(12)
	seedSplits := []struct {
		paymentID  uint
		house      *models.House
		totalCents int64
	}{
		{paymentID: 9001, house: &houses[0], totalCents: 100000},
		{paymentID: 9002, house: &houses[0], totalCents: 200000},
		{paymentID: 9003, house: &houses[0], totalCents: 50000},
		{paymentID: 9004, house: &houses[1], totalCents: 185050},
		{paymentID: 9005, house: &houses[2], totalCents: 320000},
	}

	for _, item := range seedSplits {
		if item.house.ID == 0 {
			continue
		}
		var existing models.PaymentSplit
		if err := models.DB.Where("payment_id = ? AND house_id = ?", item.paymentID, item.house.ID).First(&existing).Error; err == nil {
			stdLog.Printf("Split already exists: payment %d house %d", item.paymentID, item.house.ID)
			continue
		}
		portal := decimal.NewFromInt(item.totalCents).Mul(rate).Div(decimal.NewFromInt(100)).Floor().IntPart()
		split := models.PaymentSplit{
			PaymentID:         item.paymentID,
			HouseID:           item.house.ID,
			TotalAmountCents:  item.totalCents,
			PortalAmountCents: portal,
			HouseAmountCents:  item.totalCents - portal,
			CommissionPercent: commission,
			CommissionType:    constants.CommissionTypePercentage,
			TransferStatus:    constants.TransferStatusPending,
		}
		if err := models.DB.Create(&split).Error; err != nil {
			stdLog.Printf("Failed to create split for payment %d: %v", item.paymentID, err)
		} else {
			stdLog.Printf("Created split: payment %d house %s amount %d", item.paymentID, item.house.Name, item.totalCents)
		}
	}

	stdLog.Printf("Seed completed")
}
