package service

import (
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

func setupHouseServiceTest(t *testing.T) (*HouseService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:house_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.House{}, &models.SettlementAttempt{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	svc := NewHouseService(repository.NewHouseRepository(db), repository.NewAttemptRepository(db))
	return svc, db
}

func TestCreateHouseWithDestination(t *testing.T) {
	svc, _ := setupHouseServiceTest(t)

	house, err := svc.Create(CreateHouseInput{
		Name:          "Casa do Vale",
		ContactEmail:  "contato@casadovale.example",
		PixKey:        "11122233344",
		PixKeyType:    "CPF",
		PixHolderName: "Casa do Vale Ltda",
	})
	if err != nil {
		t.Fatalf("create house failed: %v", err)
	}
	if !house.PayoutDestinationKnown() {
		t.Fatalf("house with pix key must report destination known")
	}
	if house.PixKeyType == nil || *house.PixKeyType != constants.PixKeyTypeCPF {
		t.Fatalf("key type must be normalized to cpf, got %+v", house.PixKeyType)
	}
}

func TestCreateHouseRejectsInvalidInput(t *testing.T) {
	svc, _ := setupHouseServiceTest(t)

	if _, err := svc.Create(CreateHouseInput{Name: "   "}); !errors.Is(err, ErrInvalidHouse) {
		t.Fatalf("blank name want ErrInvalidHouse got %v", err)
	}

	_, err := svc.Create(CreateHouseInput{
		Name:       "Casa Sem Tipo",
		PixKey:     "11122233344",
		PixKeyType: "iban",
	})
	if !errors.Is(err, ErrInvalidPayoutDestination) {
		t.Fatalf("unknown key type want ErrInvalidPayoutDestination got %v", err)
	}
}

func TestUpdatePayoutReplacesDestination(t *testing.T) {
	svc, _ := setupHouseServiceTest(t)

	house, err := svc.Create(CreateHouseInput{Name: "Casa Troca"})
	if err != nil {
		t.Fatalf("create house failed: %v", err)
	}
	if house.PayoutDestinationKnown() {
		t.Fatalf("fresh house must have no destination")
	}

	updated, err := svc.UpdatePayout(house.ID, UpdatePayoutInput{
		PixKey:     "troca@example.com",
		PixKeyType: "email",
	})
	if err != nil {
		t.Fatalf("update payout failed: %v", err)
	}
	if !updated.PayoutDestinationKnown() {
		t.Fatalf("updated house must report destination known")
	}
	if updated.PixKey == nil || *updated.PixKey != "troca@example.com" {
		t.Fatalf("pix key want troca@example.com got %+v", updated.PixKey)
	}
}

func TestUpdatePayoutLockedByUnresolvedAttempt(t *testing.T) {
	svc, db := setupHouseServiceTest(t)

	house, err := svc.Create(CreateHouseInput{Name: "Casa Bloqueada"})
	if err != nil {
		t.Fatalf("create house failed: %v", err)
	}

	attempt := models.SettlementAttempt{
		HouseID:        house.ID,
		IdempotencyKey: "stuck-batch-key",
		SplitIDs:       "1,2",
		AmountCents:    900,
		Outcome:        constants.AttemptOutcomeUncertain,
	}
	if err := db.Create(&attempt).Error; err != nil {
		t.Fatalf("create attempt failed: %v", err)
	}

	_, err = svc.UpdatePayout(house.ID, UpdatePayoutInput{
		PixKey:     "nova@example.com",
		PixKeyType: "email",
	})
	if !errors.Is(err, ErrPayoutLocked) {
		t.Fatalf("unresolved attempt want ErrPayoutLocked got %v", err)
	}

	if err := db.Model(&models.SettlementAttempt{}).
		Where("id = ?", attempt.ID).
		Update("outcome", constants.AttemptOutcomeReconciled).Error; err != nil {
		t.Fatalf("resolve attempt failed: %v", err)
	}
	if _, err := svc.UpdatePayout(house.ID, UpdatePayoutInput{
		PixKey:     "nova@example.com",
		PixKeyType: "email",
	}); err != nil {
		t.Fatalf("update after reconciliation failed: %v", err)
	}
}

func TestUpdatePayoutUnknownHouse(t *testing.T) {
	svc, _ := setupHouseServiceTest(t)

	_, err := svc.UpdatePayout(9999, UpdatePayoutInput{PixKey: "x@example.com", PixKeyType: "email"})
	if !errors.Is(err, ErrHouseNotFound) {
		t.Fatalf("unknown house want ErrHouseNotFound got %v", err)
	}
}
