package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ceremonyhouse/splitpay/internal/constants"
	"github.com/ceremonyhouse/splitpay/internal/models"
	"github.com/ceremonyhouse/splitpay/internal/repository"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSplitServiceTest(t *testing.T) (*SplitService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:split_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.House{}, &models.PaymentSplit{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	return NewSplitService(repository.NewSplitRepository(db), repository.NewHouseRepository(db)), db
}

func createSplitTestHouse(t *testing.T, db *gorm.DB, name string) models.House {
	t.Helper()

	house := models.House{Name: name, ContactEmail: name + "@example.com"}
	if err := db.Create(&house).Error; err != nil {
		t.Fatalf("create house failed: %v", err)
	}
	return house
}

func TestCreateSplitPercentageFloorsPortalShare(t *testing.T) {
	svc, db := setupSplitServiceTest(t)
	house := createSplitTestHouse(t, db, "casa-pct")

	// 12.5% of 10001 = 1250.125，平台分成向下取整，余数归馆方
	split, err := svc.CreateSplit(context.Background(), CreateSplitInput{
		PaymentID:         501,
		HouseID:           house.ID,
		TotalAmountCents:  10001,
		CommissionPercent: models.NewPercentFromFloat(12.5),
		CommissionType:    constants.CommissionTypePercentage,
	})
	if err != nil {
		t.Fatalf("create split failed: %v", err)
	}
	if split.PortalAmountCents != 1250 {
		t.Fatalf("portal share want 1250 got %d", split.PortalAmountCents)
	}
	if split.HouseAmountCents != 8751 {
		t.Fatalf("house share want 8751 got %d", split.HouseAmountCents)
	}
	if split.PortalAmountCents+split.HouseAmountCents != split.TotalAmountCents {
		t.Fatalf("shares must sum to total: %d + %d != %d",
			split.PortalAmountCents, split.HouseAmountCents, split.TotalAmountCents)
	}
	if split.TransferStatus != constants.TransferStatusPending {
		t.Fatalf("new split status want pending got %s", split.TransferStatus)
	}
}

func TestCreateSplitZeroCommissionAllToHouse(t *testing.T) {
	svc, db := setupSplitServiceTest(t)
	house := createSplitTestHouse(t, db, "casa-zero")

	split, err := svc.CreateSplit(context.Background(), CreateSplitInput{
		PaymentID:         502,
		HouseID:           house.ID,
		TotalAmountCents:  9999,
		CommissionPercent: models.NewPercentFromFloat(0),
		CommissionType:    constants.CommissionTypePercentage,
	})
	if err != nil {
		t.Fatalf("create split failed: %v", err)
	}
	if split.PortalAmountCents != 0 || split.HouseAmountCents != 9999 {
		t.Fatalf("zero commission want 0/9999 got %d/%d", split.PortalAmountCents, split.HouseAmountCents)
	}
}

func TestCreateSplitFixedFee(t *testing.T) {
	svc, db := setupSplitServiceTest(t)
	house := createSplitTestHouse(t, db, "casa-fixed")

	// 固定费 5.00（货币单位）= 500 分
	split, err := svc.CreateSplit(context.Background(), CreateSplitInput{
		PaymentID:         503,
		HouseID:           house.ID,
		TotalAmountCents:  10000,
		CommissionPercent: models.NewPercentFromFloat(5),
		CommissionType:    constants.CommissionTypeFixed,
	})
	if err != nil {
		t.Fatalf("create split failed: %v", err)
	}
	if split.PortalAmountCents != 500 || split.HouseAmountCents != 9500 {
		t.Fatalf("fixed fee want 500/9500 got %d/%d", split.PortalAmountCents, split.HouseAmountCents)
	}
}

func TestCreateSplitFixedFeeAboveTotalRejected(t *testing.T) {
	svc, db := setupSplitServiceTest(t)
	house := createSplitTestHouse(t, db, "casa-overfee")

	_, err := svc.CreateSplit(context.Background(), CreateSplitInput{
		PaymentID:         504,
		HouseID:           house.ID,
		TotalAmountCents:  400,
		CommissionPercent: models.NewPercentFromFloat(5),
		CommissionType:    constants.CommissionTypeFixed,
	})
	if !errors.Is(err, ErrInvalidCommission) {
		t.Fatalf("fee above total want ErrInvalidCommission got %v", err)
	}
}

func TestCreateSplitRejectsInvalidInput(t *testing.T) {
	svc, db := setupSplitServiceTest(t)
	house := createSplitTestHouse(t, db, "casa-invalid")

	_, err := svc.CreateSplit(context.Background(), CreateSplitInput{
		PaymentID:         505,
		HouseID:           house.ID,
		TotalAmountCents:  0,
		CommissionPercent: models.NewPercentFromFloat(10),
		CommissionType:    constants.CommissionTypePercentage,
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount want ErrInvalidAmount got %v", err)
	}

	_, err = svc.CreateSplit(context.Background(), CreateSplitInput{
		PaymentID:         506,
		HouseID:           house.ID + 99,
		TotalAmountCents:  1000,
		CommissionPercent: models.NewPercentFromFloat(10),
		CommissionType:    constants.CommissionTypePercentage,
	})
	if !errors.Is(err, ErrHouseNotFound) {
		t.Fatalf("unknown house want ErrHouseNotFound got %v", err)
	}

	_, err = svc.CreateSplit(context.Background(), CreateSplitInput{
		PaymentID:         507,
		HouseID:           house.ID,
		TotalAmountCents:  1000,
		CommissionPercent: models.NewPercentFromFloat(120),
		CommissionType:    constants.CommissionTypePercentage,
	})
	if !errors.Is(err, ErrInvalidCommission) {
		t.Fatalf("commission above 100%% want ErrInvalidCommission got %v", err)
	}
}

func TestCreateSplitDuplicatePaymentHouseRejected(t *testing.T) {
	svc, db := setupSplitServiceTest(t)
	house := createSplitTestHouse(t, db, "casa-dup")

	input := CreateSplitInput{
		PaymentID:         508,
		HouseID:           house.ID,
		TotalAmountCents:  1000,
		CommissionPercent: models.NewPercentFromFloat(10),
		CommissionType:    constants.CommissionTypePercentage,
	}
	if _, err := svc.CreateSplit(context.Background(), input); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := svc.CreateSplit(context.Background(), input)
	if !errors.Is(err, ErrDuplicateSplit) {
		t.Fatalf("duplicate want ErrDuplicateSplit got %v", err)
	}
}

func TestListObligationsOrdersByAmountDesc(t *testing.T) {
	svc, db := setupSplitServiceTest(t)

	small := createSplitTestHouse(t, db, "casa-small")
	large := createSplitTestHouse(t, db, "casa-large")
	settledOnly := createSplitTestHouse(t, db, "casa-settled")

	mustCreateSplit := func(paymentID, houseID uint, total int64, status string) {
		split := models.PaymentSplit{
			PaymentID:         paymentID,
			HouseID:           houseID,
			TotalAmountCents:  total,
			PortalAmountCents: total / 10,
			HouseAmountCents:  total - total/10,
			CommissionPercent: models.NewPercentFromFloat(10),
			CommissionType:    constants.CommissionTypePercentage,
			TransferStatus:    status,
		}
		if err := db.Create(&split).Error; err != nil {
			t.Fatalf("create split failed: %v", err)
		}
	}
	mustCreateSplit(601, small.ID, 1000, constants.TransferStatusPending)
	mustCreateSplit(602, large.ID, 5000, constants.TransferStatusPending)
	mustCreateSplit(603, large.ID, 3000, constants.TransferStatusPending)
	mustCreateSplit(604, settledOnly.ID, 9000, constants.TransferStatusCompleted)
	mustCreateSplit(605, settledOnly.ID, 800, constants.TransferStatusFailed)

	obligations, err := svc.ListObligations(context.Background())
	if err != nil {
		t.Fatalf("list obligations failed: %v", err)
	}
	if len(obligations) != 2 {
		t.Fatalf("only houses with pending splits may appear, want 2 got %d", len(obligations))
	}
	if obligations[0].HouseID != large.ID || obligations[1].HouseID != small.ID {
		t.Fatalf("obligations must be ordered by amount desc, got %d then %d",
			obligations[0].HouseID, obligations[1].HouseID)
	}
	if obligations[0].PendingAmountCents != 4500+2700 {
		t.Fatalf("aggregated amount want 7200 got %d", obligations[0].PendingAmountCents)
	}
	if obligations[0].PendingCount != 2 {
		t.Fatalf("aggregated count want 2 got %d", obligations[0].PendingCount)
	}
}

func TestGetTotalsCountsOnlyCompleted(t *testing.T) {
	svc, db := setupSplitServiceTest(t)
	house := createSplitTestHouse(t, db, "casa-totals")

	now := time.Now()
	ref := "done"
	rows := []models.PaymentSplit{
		{PaymentID: 701, HouseID: house.ID, TotalAmountCents: 1000, PortalAmountCents: 100, HouseAmountCents: 900,
			CommissionPercent: models.NewPercentFromFloat(10), CommissionType: constants.CommissionTypePercentage,
			TransferStatus: constants.TransferStatusCompleted, TransferReference: &ref, TransferredAt: &now},
		{PaymentID: 702, HouseID: house.ID, TotalAmountCents: 2000, PortalAmountCents: 200, HouseAmountCents: 1800,
			CommissionPercent: models.NewPercentFromFloat(10), CommissionType: constants.CommissionTypePercentage,
			TransferStatus: constants.TransferStatusCompleted, TransferReference: &ref, TransferredAt: &now},
		{PaymentID: 703, HouseID: house.ID, TotalAmountCents: 4000, PortalAmountCents: 400, HouseAmountCents: 3600,
			CommissionPercent: models.NewPercentFromFloat(10), CommissionType: constants.CommissionTypePercentage,
			TransferStatus: constants.TransferStatusPending},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("create split failed: %v", err)
		}
	}

	totals, err := svc.GetTotals()
	if err != nil {
		t.Fatalf("get totals failed: %v", err)
	}
	if totals.PortalAmountCents != 300 || totals.HouseAmountCents != 2700 || totals.CompletedCount != 2 {
		t.Fatalf("totals want 300/2700/2 got %d/%d/%d",
			totals.PortalAmountCents, totals.HouseAmountCents, totals.CompletedCount)
	}
}
