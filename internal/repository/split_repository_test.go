package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/ceremonyhouse/splitpay/internal/constants"
	"github.com/ceremonyhouse/splitpay/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSplitRepoTest(t *testing.T) (*GormSplitRepository, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:split_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.House{}, &models.PaymentSplit{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewSplitRepository(db), db
}

func createRepoTestHouse(t *testing.T, db *gorm.DB, name string) models.House {
	t.Helper()

	house := models.House{Name: name}
	if err := db.Create(&house).Error; err != nil {
		t.Fatalf("create house failed: %v", err)
	}
	return house
}

func createRepoTestSplit(t *testing.T, db *gorm.DB, paymentID, houseID uint, houseCents int64, status string) models.PaymentSplit {
	t.Helper()

	split := models.PaymentSplit{
		PaymentID:         paymentID,
		HouseID:           houseID,
		TotalAmountCents:  houseCents + houseCents/9,
		PortalAmountCents: houseCents / 9,
		HouseAmountCents:  houseCents,
		CommissionPercent: models.NewPercentFromFloat(10),
		CommissionType:    constants.CommissionTypePercentage,
		TransferStatus:    status,
	}
	if err := db.Create(&split).Error; err != nil {
		t.Fatalf("create split failed: %v", err)
	}
	return split
}

func TestClaimPendingOnlyClaimsMatchingRows(t *testing.T) {
	repo, db := setupSplitRepoTest(t)
	house := createRepoTestHouse(t, db, "claim-house")
	other := createRepoTestHouse(t, db, "other-house")

	pending := createRepoTestSplit(t, db, 801, house.ID, 900, constants.TransferStatusPending)
	settled := createRepoTestSplit(t, db, 802, house.ID, 900, constants.TransferStatusCompleted)
	foreign := createRepoTestSplit(t, db, 803, other.ID, 900, constants.TransferStatusPending)

	affected, err := repo.ClaimPending(
		[]uint{pending.ID, settled.ID, foreign.ID},
		house.ID,
		constants.TransferStatusProcessing,
	)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("claim affected want 1 got %d", affected)
	}

	var claimed models.PaymentSplit
	if err := db.First(&claimed, pending.ID).Error; err != nil {
		t.Fatalf("reload claimed split failed: %v", err)
	}
	if claimed.TransferStatus != constants.TransferStatusProcessing {
		t.Fatalf("claimed status want processing got %s", claimed.TransferStatus)
	}
	var untouched models.PaymentSplit
	if err := db.First(&untouched, foreign.ID).Error; err != nil {
		t.Fatalf("reload foreign split failed: %v", err)
	}
	if untouched.TransferStatus != constants.TransferStatusPending {
		t.Fatalf("foreign split must stay pending got %s", untouched.TransferStatus)
	}
}

func TestMarkCompletedPendingSkipsNonPending(t *testing.T) {
	repo, db := setupSplitRepoTest(t)
	house := createRepoTestHouse(t, db, "mark-house")

	s1 := createRepoTestSplit(t, db, 811, house.ID, 900, constants.TransferStatusPending)
	s2 := createRepoTestSplit(t, db, 812, house.ID, 900, constants.TransferStatusFailed)

	now := time.Now()
	affected, err := repo.MarkCompletedPending([]uint{s1.ID, s2.ID}, house.ID, "receipt-1", now)
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("mark affected want 1 got %d", affected)
	}

	var done models.PaymentSplit
	if err := db.First(&done, s1.ID).Error; err != nil {
		t.Fatalf("reload split failed: %v", err)
	}
	if done.TransferStatus != constants.TransferStatusCompleted {
		t.Fatalf("status want completed got %s", done.TransferStatus)
	}
	if done.TransferReference == nil || *done.TransferReference != "receipt-1" {
		t.Fatalf("reference want receipt-1 got %+v", done.TransferReference)
	}
	if done.TransferredAt == nil {
		t.Fatalf("transferred_at should be set")
	}
}

func TestReleaseClaimedReturnsToPending(t *testing.T) {
	repo, db := setupSplitRepoTest(t)
	house := createRepoTestHouse(t, db, "release-house")

	claimed := createRepoTestSplit(t, db, 821, house.ID, 900, constants.TransferStatusProcessing)
	settled := createRepoTestSplit(t, db, 822, house.ID, 900, constants.TransferStatusCompleted)

	affected, err := repo.ReleaseClaimed([]uint{claimed.ID, settled.ID})
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("release affected want 1 got %d", affected)
	}

	var released models.PaymentSplit
	if err := db.First(&released, claimed.ID).Error; err != nil {
		t.Fatalf("reload split failed: %v", err)
	}
	if released.TransferStatus != constants.TransferStatusPending {
		t.Fatalf("released status want pending got %s", released.TransferStatus)
	}
	var untouched models.PaymentSplit
	if err := db.First(&untouched, settled.ID).Error; err != nil {
		t.Fatalf("reload settled split failed: %v", err)
	}
	if untouched.TransferStatus != constants.TransferStatusCompleted {
		t.Fatalf("settled split must not be released, got %s", untouched.TransferStatus)
	}
}

func TestResolveUnsettledLeavesTerminalRowsAlone(t *testing.T) {
	repo, db := setupSplitRepoTest(t)
	house := createRepoTestHouse(t, db, "resolve-house")

	pending := createRepoTestSplit(t, db, 831, house.ID, 900, constants.TransferStatusPending)
	processing := createRepoTestSplit(t, db, 832, house.ID, 900, constants.TransferStatusProcessing)
	completed := createRepoTestSplit(t, db, 833, house.ID, 900, constants.TransferStatusCompleted)

	ref := "recon-ref"
	now := time.Now()
	affected, err := repo.ResolveUnsettled(
		[]uint{pending.ID, processing.ID, completed.ID},
		constants.TransferStatusCompleted,
		&ref,
		&now,
	)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if affected != 2 {
		t.Fatalf("resolve affected want 2 got %d", affected)
	}

	var preserved models.PaymentSplit
	if err := db.First(&preserved, completed.ID).Error; err != nil {
		t.Fatalf("reload completed split failed: %v", err)
	}
	if preserved.TransferReference != nil {
		t.Fatalf("already completed split must keep its own reference state")
	}
}

func TestListPendingByHouseAggregates(t *testing.T) {
	repo, db := setupSplitRepoTest(t)

	pixKey := "99988877766"
	withKey := models.House{Name: "with-key", PixKey: &pixKey}
	if err := db.Create(&withKey).Error; err != nil {
		t.Fatalf("create house failed: %v", err)
	}
	noKey := createRepoTestHouse(t, db, "no-key")

	createRepoTestSplit(t, db, 841, withKey.ID, 500, constants.TransferStatusPending)
	createRepoTestSplit(t, db, 842, withKey.ID, 700, constants.TransferStatusPending)
	createRepoTestSplit(t, db, 843, noKey.ID, 2000, constants.TransferStatusPending)
	createRepoTestSplit(t, db, 844, noKey.ID, 100, constants.TransferStatusCompleted)

	obligations, err := repo.ListPendingByHouse()
	if err != nil {
		t.Fatalf("list pending by house failed: %v", err)
	}
	if len(obligations) != 2 {
		t.Fatalf("obligation rows want 2 got %d", len(obligations))
	}
	if obligations[0].HouseID != noKey.ID || obligations[0].PendingAmountCents != 2000 {
		t.Fatalf("largest obligation first, want house %d/2000 got %d/%d",
			noKey.ID, obligations[0].HouseID, obligations[0].PendingAmountCents)
	}
	if obligations[0].PayoutDestinationKnown {
		t.Fatalf("house without pix key must report destination unknown")
	}
	if !obligations[1].PayoutDestinationKnown {
		t.Fatalf("house with pix key must report destination known")
	}
	if obligations[1].PendingAmountCents != 1200 || obligations[1].PendingCount != 2 {
		t.Fatalf("aggregation want 1200/2 got %d/%d",
			obligations[1].PendingAmountCents, obligations[1].PendingCount)
	}
}

func TestListCompletedFiltersAndPaginates(t *testing.T) {
	repo, db := setupSplitRepoTest(t)
	house := createRepoTestHouse(t, db, "history-house")
	other := createRepoTestHouse(t, db, "history-other")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ref := "paid"
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		split := models.PaymentSplit{
			PaymentID:         uint(851 + i),
			HouseID:           house.ID,
			TotalAmountCents:  1000,
			PortalAmountCents: 100,
			HouseAmountCents:  900,
			CommissionPercent: models.NewPercentFromFloat(10),
			CommissionType:    constants.CommissionTypePercentage,
			TransferStatus:    constants.TransferStatusCompleted,
			TransferReference: &ref,
			TransferredAt:     &at,
		}
		if err := db.Create(&split).Error; err != nil {
			t.Fatalf("create history split failed: %v", err)
		}
	}
	createRepoTestSplit(t, db, 860, other.ID, 900, constants.TransferStatusPending)

	splits, total, err := repo.ListCompleted(SplitHistoryFilter{Page: 1, PageSize: 2, HouseID: house.ID})
	if err != nil {
		t.Fatalf("list completed failed: %v", err)
	}
	if total != 5 {
		t.Fatalf("total want 5 got %d", total)
	}
	if len(splits) != 2 {
		t.Fatalf("page size want 2 got %d", len(splits))
	}
	if splits[0].TransferredAt.Before(*splits[1].TransferredAt) {
		t.Fatalf("history must be ordered by transferred_at desc")
	}

	from := base.Add(3 * time.Hour)
	splits, total, err = repo.ListCompleted(SplitHistoryFilter{Page: 1, PageSize: 10, TransferredFrom: &from})
	if err != nil {
		t.Fatalf("list completed with from filter failed: %v", err)
	}
	if total != 2 || len(splits) != 2 {
		t.Fatalf("from filter want 2 rows got total=%d len=%d", total, len(splits))
	}
}

func TestGetSettlementTotalsEmptyLedger(t *testing.T) {
	repo, _ := setupSplitRepoTest(t)

	totals, err := repo.GetSettlementTotals()
	if err != nil {
		t.Fatalf("get totals failed: %v", err)
	}
	if totals.PortalAmountCents != 0 || totals.HouseAmountCents != 0 || totals.CompletedCount != 0 {
		t.Fatalf("empty ledger totals want zeros got %+v", totals)
	}
}
