package repository

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/ceremonyhouse/splitpay/internal/constants"
	"github.com/ceremonyhouse/splitpay/internal/models"

	"gorm.io/gorm"
)

// HouseObligation 馆方待结算聚合投影（按需从台账实时计算，不落库）
type HouseObligation struct {
	HouseID                uint   `json:"house_id"`
	HouseName              string `json:"house_name"`
	PendingAmountCents     int64  `json:"pending_amount_cents"`
	PendingCount           int64  `json:"pending_count"`
	PayoutDestinationKnown bool   `json:"payout_destination_known"`
	UsesNativeSplit        bool   `json:"uses_native_split"`
}

// SettlementTotals 累计结算统计
type SettlementTotals struct {
	PortalAmountCents int64 `json:"portal_amount_cents"`
	HouseAmountCents  int64 `json:"house_amount_cents"`
	CompletedCount    int64 `json:"completed_count"`
}

// SplitRepository 分账台账数据访问接口
type SplitRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) SplitRepository

	Create(split *models.PaymentSplit) error
	GetByID(id uint) (*models.PaymentSplit, error)
	GetByIDs(ids []uint) ([]models.PaymentSplit, error)
	GetByPaymentAndHouse(paymentID, houseID uint) (*models.PaymentSplit, error)
	ListPendingForHouse(houseID uint) ([]models.PaymentSplit, error)
	ListPendingByHouse() ([]HouseObligation, error)

	ClaimPending(ids []uint, houseID uint, toStatus string) (int64, error)
	MarkCompletedPending(ids []uint, houseID uint, reference string, transferredAt time.Time) (int64, error)
	ResolveClaimed(ids []uint, status string, reference *string, transferredAt *time.Time) (int64, error)
	ResolveUnsettled(ids []uint, status string, reference *string, transferredAt *time.Time) (int64, error)
	ReleaseClaimed(ids []uint) (int64, error)

	ListCompleted(filter SplitHistoryFilter) ([]models.PaymentSplit, int64, error)
	GetSettlementTotals() (SettlementTotals, error)
}

// GormSplitRepository GORM 分账台账仓储
type GormSplitRepository struct {
	db *gorm.DB
}

// NewSplitRepository 创建分账台账仓储
func NewSplitRepository(db *gorm.DB) *GormSplitRepository {
	return &GormSplitRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSplitRepository) WithTx(tx *gorm.DB) SplitRepository {
	if tx == nil {
		return r
	}
	return &GormSplitRepository{db: tx}
}

// Transaction 执行事务
func (r *GormSplitRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建分账记录
func (r *GormSplitRepository) Create(split *models.PaymentSplit) error {
	if split == nil {
		return nil
	}
	return r.db.Create(split).Error
}

// GetByID 按ID获取分账记录
func (r *GormSplitRepository) GetByID(id uint) (*models.PaymentSplit, error) {
	if id == 0 {
		return nil, nil
	}
	var split models.PaymentSplit
	if err := r.db.First(&split, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &split, nil
}

// GetByIDs 按ID集合获取分账记录
func (r *GormSplitRepository) GetByIDs(ids []uint) ([]models.PaymentSplit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	splits := make([]models.PaymentSplit, 0, len(ids))
	if err := r.db.Where("id IN ?", ids).Find(&splits).Error; err != nil {
		return nil, err
	}
	return splits, nil
}

// GetByPaymentAndHouse 按支付与馆方获取分账记录（唯一约束对应的读路径）
func (r *GormSplitRepository) GetByPaymentAndHouse(paymentID, houseID uint) (*models.PaymentSplit, error) {
	if paymentID == 0 || houseID == 0 {
		return nil, nil
	}
	var split models.PaymentSplit
	err := r.db.Where("payment_id = ? AND house_id = ?", paymentID, houseID).First(&split).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &split, nil
}

// ListPendingForHouse 获取馆方全部待结算分账（创建时间升序）
func (r *GormSplitRepository) ListPendingForHouse(houseID uint) ([]models.PaymentSplit, error) {
	if houseID == 0 {
		return nil, nil
	}
	splits := make([]models.PaymentSplit, 0)
	err := r.db.
		Where("house_id = ? AND transfer_status = ?", houseID, constants.TransferStatusPending).
		Order("created_at ASC, id ASC").
		Find(&splits).Error
	if err != nil {
		return nil, err
	}
	return splits, nil
}

type houseObligationRow struct {
	HouseID            uint
	HouseName          string
	PixKey             *string
	HasMPConnected     bool
	PendingAmountCents int64
	PendingCount       int64
}

// ListPendingByHouse 按馆方聚合待结算金额与笔数，金额大者在前
func (r *GormSplitRepository) ListPendingByHouse() ([]HouseObligation, error) {
	rows := make([]houseObligationRow, 0)
	err := r.db.Model(&models.PaymentSplit{}).
		Select(strings.Join([]string{
			"payment_splits.house_id AS house_id",
			"houses.name AS house_name",
			"houses.pix_key AS pix_key",
			"houses.has_mp_connected AS has_mp_connected",
			"COALESCE(SUM(payment_splits.house_amount_cents), 0) AS pending_amount_cents",
			"COUNT(payment_splits.id) AS pending_count",
		}, ", ")).
		Joins("JOIN houses ON houses.id = payment_splits.house_id").
		Where("payment_splits.transfer_status = ?", constants.TransferStatusPending).
		Group("payment_splits.house_id, houses.name, houses.pix_key, houses.has_mp_connected").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	obligations := make([]HouseObligation, 0, len(rows))
	for _, row := range rows {
		destinationKnown := row.PixKey != nil && strings.TrimSpace(*row.PixKey) != ""
		obligations = append(obligations, HouseObligation{
			HouseID:                row.HouseID,
			HouseName:              row.HouseName,
			PendingAmountCents:     row.PendingAmountCents,
			PendingCount:           row.PendingCount,
			PayoutDestinationKnown: destinationKnown,
			UsesNativeSplit:        row.HasMPConnected,
		})
	}
	// 金额相同按馆方ID稳定排序，避免不同方言的分组顺序差异
	sort.SliceStable(obligations, func(i, j int) bool {
		if obligations[i].PendingAmountCents != obligations[j].PendingAmountCents {
			return obligations[i].PendingAmountCents > obligations[j].PendingAmountCents
		}
		return obligations[i].HouseID < obligations[j].HouseID
	})
	return obligations, nil
}

// ClaimPending 原子占有一组待结算分账：单条条件更新，返回实际占有行数。
// 调用方必须核对返回值与请求数量，小于请求数量时回滚整个事务。
func (r *GormSplitRepository) ClaimPending(ids []uint, houseID uint, toStatus string) (int64, error) {
	if len(ids) == 0 || houseID == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.PaymentSplit{}).
		Where("id IN ? AND house_id = ? AND transfer_status = ?", ids, houseID, constants.TransferStatusPending).
		Updates(map[string]interface{}{
			"transfer_status": strings.TrimSpace(toStatus),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// MarkCompletedPending 人工结算路径：单条条件更新把待结算分账直接置为完成。
// 返回实际更新行数，调用方核对数量后决定提交或回滚。
func (r *GormSplitRepository) MarkCompletedPending(ids []uint, houseID uint, reference string, transferredAt time.Time) (int64, error) {
	if len(ids) == 0 || houseID == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.PaymentSplit{}).
		Where("id IN ? AND house_id = ? AND transfer_status = ?", ids, houseID, constants.TransferStatusPending).
		Updates(map[string]interface{}{
			"transfer_status":    constants.TransferStatusCompleted,
			"transfer_reference": strings.TrimSpace(reference),
			"transferred_at":     transferredAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ResolveClaimed 将在途分账迁移到终态（completed/failed）
func (r *GormSplitRepository) ResolveClaimed(ids []uint, status string, reference *string, transferredAt *time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updates := map[string]interface{}{
		"transfer_status": strings.TrimSpace(status),
	}
	if reference != nil {
		updates["transfer_reference"] = *reference
	}
	if transferredAt != nil {
		updates["transferred_at"] = *transferredAt
	}
	result := r.db.Model(&models.PaymentSplit{}).
		Where("id IN ? AND transfer_status = ?", ids, constants.TransferStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ResolveUnsettled 对账路径：把批次内仍未结算（pending/processing）的分账
// 迁移到终态。已被人工结算的行会被条件更新自然跳过。
func (r *GormSplitRepository) ResolveUnsettled(ids []uint, status string, reference *string, transferredAt *time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updates := map[string]interface{}{
		"transfer_status": strings.TrimSpace(status),
	}
	if reference != nil {
		updates["transfer_reference"] = *reference
	}
	if transferredAt != nil {
		updates["transferred_at"] = *transferredAt
	}
	unsettled := []string{constants.TransferStatusPending, constants.TransferStatusProcessing}
	result := r.db.Model(&models.PaymentSplit{}).
		Where("id IN ? AND transfer_status IN ?", ids, unsettled).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ReleaseClaimed 不确定结果时回退在途分账为待结算
func (r *GormSplitRepository) ReleaseClaimed(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.PaymentSplit{}).
		Where("id IN ? AND transfer_status = ?", ids, constants.TransferStatusProcessing).
		Updates(map[string]interface{}{
			"transfer_status": constants.TransferStatusPending,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListCompleted 分页查询已完成结算（结算时间降序）
func (r *GormSplitRepository) ListCompleted(filter SplitHistoryFilter) ([]models.PaymentSplit, int64, error) {
	query := r.db.Model(&models.PaymentSplit{}).
		Where("transfer_status = ?", constants.TransferStatusCompleted)
	if filter.HouseID > 0 {
		query = query.Where("house_id = ?", filter.HouseID)
	}
	if filter.TransferredFrom != nil {
		query = query.Where("transferred_at >= ?", *filter.TransferredFrom)
	}
	if filter.TransferredTo != nil {
		query = query.Where("transferred_at <= ?", *filter.TransferredTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	splits := make([]models.PaymentSplit, 0)
	err := applyPagination(query, filter.Page, filter.PageSize).
		Preload("House").
		Order("transferred_at DESC, id DESC").
		Find(&splits).Error
	if err != nil {
		return nil, 0, err
	}
	return splits, total, nil
}

// GetSettlementTotals 累计平台分成与馆方打款（仅统计已完成）
func (r *GormSplitRepository) GetSettlementTotals() (SettlementTotals, error) {
	var totals SettlementTotals
	err := r.db.Model(&models.PaymentSplit{}).
		Where("transfer_status = ?", constants.TransferStatusCompleted).
		Select(strings.Join([]string{
			"COALESCE(SUM(portal_amount_cents), 0) AS portal_amount_cents",
			"COALESCE(SUM(house_amount_cents), 0) AS house_amount_cents",
			"COUNT(id) AS completed_count",
		}, ", ")).
		Scan(&totals).Error
	if err != nil {
		return SettlementTotals{}, err
	}
	return totals, nil
}
