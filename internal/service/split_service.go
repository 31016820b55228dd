package service

import (
	"context"
	"strings"
	"time"

	"github.com/ceremonyhouse/splitpay/internal/cache"
	"github.com/ceremonyhouse/splitpay/internal/constants"
	"github.com/ceremonyhouse/splitpay/internal/logger"
	"github.com/ceremonyhouse/splitpay/internal/models"
	"github.com/ceremonyhouse/splitpay/internal/repository"

	"github.com/shopspring/decimal"
)

// SplitService 分账台账服务：负责分账创建、待结算聚合与结算历史查询。
// 结算状态的迁移不在本服务内，统一由 SettlementService 驱动。
type SplitService struct {
	splitRepo repository.SplitRepository
	houseRepo repository.HouseRepository
}

// NewSplitService 创建分账台账服务
func NewSplitService(splitRepo repository.SplitRepository, houseRepo repository.HouseRepository) *SplitService {
	return &SplitService{
		splitRepo: splitRepo,
		houseRepo: houseRepo,
	}
}

// CreateSplitInput 创建分账输入
type CreateSplitInput struct {
	PaymentID         uint
	HouseID           uint
	TotalAmountCents  int64
	CommissionPercent models.Percent
	CommissionType    string
}

// CreateSplit 在支付确认时同步创建分账记录。
// 金额分配规则：平台分成向下取整，舍入余数始终归馆方，保证平台
// 不会因舍入多收；portal + house == total 在创建时校验并终生不变。
func (s *SplitService) CreateSplit(ctx context.Context, input CreateSplitInput) (*models.PaymentSplit, error) {
	_ = ctx
	if input.TotalAmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if input.PaymentID == 0 || input.HouseID == 0 {
		return nil, ErrInvalidAmount
	}

	house, err := s.houseRepo.GetByID(input.HouseID)
	if err != nil {
		return nil, err
	}
	if house == nil {
		return nil, ErrHouseNotFound
	}

	commissionType := normalizeCommissionType(input.CommissionType)
	if commissionType == "" {
		return nil, ErrInvalidCommission
	}

	portalCents, err := computePortalShare(input.TotalAmountCents, input.CommissionPercent.Decimal, commissionType)
	if err != nil {
		return nil, err
	}
	houseCents := input.TotalAmountCents - portalCents
	if portalCents < 0 || houseCents < 0 || portalCents+houseCents != input.TotalAmountCents {
		return nil, ErrInvalidCommission
	}

	existing, err := s.splitRepo.GetByPaymentAndHouse(input.PaymentID, input.HouseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateSplit
	}

	split := &models.PaymentSplit{
		PaymentID:         input.PaymentID,
		HouseID:           input.HouseID,
		TotalAmountCents:  input.TotalAmountCents,
		PortalAmountCents: portalCents,
		HouseAmountCents:  houseCents,
		CommissionPercent: input.CommissionPercent,
		CommissionType:    commissionType,
		TransferStatus:    constants.TransferStatusPending,
		CreatedAt:         time.Now(),
	}
	if err := s.splitRepo.Create(split); err != nil {
		return nil, err
	}

	invalidateObligationCache()
	logger.Infow("payment_split_created",
		"split_id", split.ID,
		"payment_id", split.PaymentID,
		"house_id", split.HouseID,
		"total_cents", split.TotalAmountCents,
		"portal_cents", split.PortalAmountCents,
		"house_cents", split.HouseAmountCents,
		"commission_type", split.CommissionType,
	)
	return split, nil
}

// GetPendingForHouse 获取馆方全部待结算分账及合计金额
func (s *SplitService) GetPendingForHouse(houseID uint) ([]models.PaymentSplit, int64, error) {
	house, err := s.houseRepo.GetByID(houseID)
	if err != nil {
		return nil, 0, err
	}
	if house == nil {
		return nil, 0, ErrHouseNotFound
	}
	splits, err := s.splitRepo.ListPendingForHouse(houseID)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	for _, split := range splits {
		total += split.HouseAmountCents
	}
	return splits, total, nil
}

// GetByIDs 按ID集合读取分账
func (s *SplitService) GetByIDs(ids []uint) ([]models.PaymentSplit, error) {
	return s.splitRepo.GetByIDs(ids)
}

// ListObligations 按馆方聚合待结算义务，金额大者在前。
// 聚合始终从台账实时计算；缓存仅服务看板展示，任何结算写入都会失效。
func (s *SplitService) ListObligations(ctx context.Context) ([]repository.HouseObligation, error) {
	if cache.Enabled() {
		cached := make([]repository.HouseObligation, 0)
		if hit, err := cache.GetJSON(ctx, constants.CacheKeyObligations, &cached); err == nil && hit {
			return cached, nil
		}
	}

	obligations, err := s.splitRepo.ListPendingByHouse()
	if err != nil {
		return nil, err
	}

	if cache.Enabled() {
		ttl := time.Duration(constants.ObligationCacheTTLSeconds) * time.Second
		if err := cache.SetJSON(ctx, constants.CacheKeyObligations, obligations, ttl); err != nil {
			logger.Warnw("obligation_cache_set_failed", "error", err)
		}
	}
	return obligations, nil
}

// ListCompleted 分页查询结算历史（结算时间降序）
func (s *SplitService) ListCompleted(filter repository.SplitHistoryFilter) ([]models.PaymentSplit, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return s.splitRepo.ListCompleted(filter)
}

// GetTotals 累计结算统计（平台分成与馆方打款）
func (s *SplitService) GetTotals() (repository.SettlementTotals, error) {
	return s.splitRepo.GetSettlementTotals()
}

// computePortalShare 按佣金参数计算平台分成（分）。
// percentage：parameter 为百分比，平台分成向下取整；
// fixed/flat_fee：parameter 为固定平台费（货币单位，如 5.00 = 500 分）。
func computePortalShare(totalCents int64, parameter decimal.Decimal, commissionType string) (int64, error) {
	switch commissionType {
	case constants.CommissionTypePercentage:
		if parameter.IsNegative() || parameter.GreaterThan(decimal.NewFromInt(100)) {
			return 0, ErrInvalidCommission
		}
		portal := decimal.NewFromInt(totalCents).
			Mul(parameter).
			Div(decimal.NewFromInt(100)).
			Floor()
		if !portal.IsInteger() {
			return 0, ErrInvalidCommission
		}
		return portal.IntPart(), nil
	case constants.CommissionTypeFixed, constants.CommissionTypeFlatFee:
		feeCents := parameter.Mul(decimal.NewFromInt(100)).Round(0)
		if !feeCents.IsInteger() {
			return 0, ErrInvalidCommission
		}
		portal := feeCents.IntPart()
		if portal < 0 || portal > totalCents {
			return 0, ErrInvalidCommission
		}
		return portal, nil
	default:
		return 0, ErrInvalidCommission
	}
}

func normalizeCommissionType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", constants.CommissionTypePercentage:
		return constants.CommissionTypePercentage
	case constants.CommissionTypeFixed:
		return constants.CommissionTypeFixed
	case constants.CommissionTypeFlatFee:
		return constants.CommissionTypeFlatFee
	default:
		return ""
	}
}

// invalidateObligationCache 删除义务聚合缓存（写路径统一调用）
func invalidateObligationCache() {
	if !cache.Enabled() {
		return
	}
	if err := cache.Del(context.Background(), constants.CacheKeyObligations); err != nil {
		logger.Warnw("obligation_cache_del_failed", "error", err)
	}
}
