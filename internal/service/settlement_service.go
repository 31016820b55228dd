package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ceremonyhouse/splitpay/internal/constants"
	"github.com/ceremonyhouse/splitpay/internal/logger"
	"github.com/ceremonyhouse/splitpay/internal/models"
	"github.com/ceremonyhouse/splitpay/internal/processor/pix"
	"github.com/ceremonyhouse/splitpay/internal/queue"
	"github.com/ceremonyhouse/splitpay/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// settlementKeyNamespace 幂等键命名空间：同一分账批次永远推导出同一个键，
// 超时后的客户端重试不会在处理商侧产生第二笔真实转账。
var settlementKeyNamespace = uuid.MustParse("c3a1f8d2-5b6e-4f90-9d27-8e41b0a6c5d4")

// SettlementService 结算执行器：驱动分账状态机的唯一写入方。
// 人工路径直接把待结算分账置为完成；自动路径先原子占有分账集合，
// 再对外发起一笔批次转账，按处理商应答迁移终态。
type SettlementService struct {
	splitRepo   repository.SplitRepository
	houseRepo   repository.HouseRepository
	attemptRepo repository.AttemptRepository
	gate        *BalanceGate
	client      ProcessorClient
	queueClient *queue.Client
}

// NewSettlementService 创建结算执行器
func NewSettlementService(
	splitRepo repository.SplitRepository,
	houseRepo repository.HouseRepository,
	attemptRepo repository.AttemptRepository,
	gate *BalanceGate,
	client ProcessorClient,
	queueClient *queue.Client,
) *SettlementService {
	return &SettlementService{
		splitRepo:   splitRepo,
		houseRepo:   houseRepo,
		attemptRepo: attemptRepo,
		gate:        gate,
		client:      client,
		queueClient: queueClient,
	}
}

// AutomatedSettlementResult 自动结算结果
type AutomatedSettlementResult struct {
	Splits            []models.PaymentSplit `json:"splits"`
	AmountCents       int64                 `json:"amount_cents"`
	ExternalReference string                `json:"external_reference"`
	IdempotencyKey    string                `json:"idempotency_key"`
}

// SettleManual 人工认定结算：不对外发起任何调用，用于在系统外已经
// 完成打款的义务。整批原子完成，任一分账不满足条件则零写入。
func (s *SettlementService) SettleManual(ctx context.Context, houseID uint, splitIDs []uint, reference string) ([]models.PaymentSplit, error) {
	_ = ctx
	house, err := s.houseRepo.GetByID(houseID)
	if err != nil {
		return nil, err
	}
	if house == nil {
		return nil, ErrHouseNotFound
	}

	ids := dedupeIDs(splitIDs)
	if len(ids) == 0 {
		return nil, ErrSplitNotFound
	}
	if err := s.verifyPendingSet(ids, houseID); err != nil {
		return nil, err
	}

	reference = strings.TrimSpace(reference)
	now := time.Now()
	if reference == "" {
		reference = fmt.Sprintf("%s-%s", constants.ManualReferencePrefix, now.Format("20060102150405"))
	}

	err = s.splitRepo.Transaction(func(tx *gorm.DB) error {
		affected, err := s.splitRepo.WithTx(tx).MarkCompletedPending(ids, houseID, reference, now)
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			// 回滚整批，保证零部分写入
			return ErrStaleSplitSet
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateObligationCache()
	logger.Infow("settlement_manual_done",
		"house_id", houseID,
		"split_count", len(ids),
		"reference", reference,
	)
	return s.splitRepo.GetByIDs(ids)
}

// SettleAutomated 自动转账结算。前置条件按序校验，先失败者先返回；
// 余额闸门通过后先原子占有分账集合，再对外发起唯一一笔批次转账。
func (s *SettlementService) SettleAutomated(ctx context.Context, houseID uint, splitIDs []uint) (*AutomatedSettlementResult, error) {
	house, err := s.houseRepo.GetByID(houseID)
	if err != nil {
		return nil, err
	}
	if house == nil {
		return nil, ErrHouseNotFound
	}
	// 原生分账馆方无条件拒绝，即使配置了 Pix 收款目的地
	if house.HasMPConnected {
		return nil, ErrUsesNativeSplit
	}
	if !house.PayoutDestinationKnown() {
		return nil, ErrInvalidPayoutDestination
	}

	// 馆方存在待对账的转账时禁止再次自动结算，避免重复打款
	unresolved, err := s.attemptRepo.HasUnresolvedForHouse(houseID)
	if err != nil {
		return nil, err
	}
	if unresolved {
		return nil, ErrUncertainOutcome
	}

	ids := dedupeIDs(splitIDs)
	if len(ids) == 0 {
		return nil, ErrSplitNotFound
	}
	if err := s.verifyPendingSet(ids, houseID); err != nil {
		return nil, err
	}

	splits, err := s.splitRepo.GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	var amountCents int64
	for _, split := range splits {
		amountCents += split.HouseAmountCents
	}

	// 余额在转账确认时点评估，而不是界面展示时点
	balance, sufficient, available := s.gate.HasSufficient(ctx, amountCents)
	if !available {
		return nil, ErrBalanceUnavailable
	}
	if !sufficient {
		return nil, &InsufficientBalanceError{
			RequiredCents:  amountCents,
			AvailableCents: balance.AvailableCents,
		}
	}

	idempotencyKey := batchIdempotencyKey(houseID, ids)
	existingAttempt, err := s.attemptRepo.GetByIdempotencyKey(idempotencyKey)
	if err != nil {
		return nil, err
	}

	// 占有分账集合并落转账尝试记录：竞争失败方在这里终止，不会触达处理商
	var attemptID uint
	err = s.splitRepo.Transaction(func(tx *gorm.DB) error {
		affected, err := s.splitRepo.WithTx(tx).ClaimPending(ids, houseID, constants.TransferStatusProcessing)
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return ErrStaleSplitSet
		}

		attemptRepo := s.attemptRepo.WithTx(tx)
		if existingAttempt == nil {
			attempt := &models.SettlementAttempt{
				HouseID:        houseID,
				IdempotencyKey: idempotencyKey,
				SplitIDs:       joinIDs(ids),
				AmountCents:    amountCents,
				Outcome:        constants.AttemptOutcomeUncertain,
			}
			if err := attemptRepo.Create(attempt); err != nil {
				return err
			}
			attemptID = attempt.ID
		} else {
			if err := attemptRepo.MarkOutcome(existingAttempt.ID, constants.AttemptOutcomeUncertain, "", "", nil); err != nil {
				return err
			}
			attemptID = existingAttempt.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateObligationCache()

	input := pix.TransferInput{
		DestinationKey:     derefString(house.PixKey),
		DestinationKeyType: derefString(house.PixKeyType),
		AmountCents:        amountCents,
		IdempotencyKey:     idempotencyKey,
		Description:        fmt.Sprintf("结算打款 house=%d", houseID),
	}
	result, err := s.client.CreateTransfer(ctx, input)
	if err != nil {
		// 传输层失败无法判断转账是否已被受理，按结果不明处理
		return nil, s.handleUncertain(ctx, attemptID, idempotencyKey, ids, "transfer_request_failed", err)
	}

	switch result.Status {
	case pix.StatusSuccess:
		return s.completeAutomated(attemptID, idempotencyKey, ids, amountCents, result)
	case pix.StatusRejected:
		return nil, s.failAutomated(attemptID, ids, result)
	default:
		// 处理商受理中同样按结果不明处理，由对账任务确认终态
		return nil, s.handleUncertain(ctx, attemptID, idempotencyKey, ids, "transfer_outcome_pending", nil)
	}
}

func (s *SettlementService) completeAutomated(attemptID uint, idempotencyKey string, ids []uint, amountCents int64, result *pix.TransferResult) (*AutomatedSettlementResult, error) {
	now := time.Now()
	reference := result.ExternalReference
	err := s.splitRepo.Transaction(func(tx *gorm.DB) error {
		affected, err := s.splitRepo.WithTx(tx).ResolveClaimed(ids, constants.TransferStatusCompleted, &reference, &now)
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return fmt.Errorf("resolve claimed splits: affected %d of %d", affected, len(ids))
		}
		return s.attemptRepo.WithTx(tx).MarkOutcome(attemptID, constants.AttemptOutcomeCompleted, reference, "", &now)
	})
	if err != nil {
		// 外部转账已成功而本地落库失败：保留不确定状态，交由对账确认
		logger.Errorw("settlement_local_write_failed_after_transfer",
			"attempt_id", attemptID,
			"idempotency_key", idempotencyKey,
			"error", err,
		)
		s.enqueueReconcile(attemptID, idempotencyKey)
		return nil, ErrUncertainOutcome
	}

	invalidateObligationCache()
	logger.Infow("settlement_automated_done",
		"attempt_id", attemptID,
		"split_count", len(ids),
		"amount_cents", amountCents,
		"external_reference", reference,
	)
	splits, err := s.splitRepo.GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	return &AutomatedSettlementResult{
		Splits:            splits,
		AmountCents:       amountCents,
		ExternalReference: reference,
		IdempotencyKey:    idempotencyKey,
	}, nil
}

func (s *SettlementService) failAutomated(attemptID uint, ids []uint, result *pix.TransferResult) error {
	now := time.Now()
	err := s.splitRepo.Transaction(func(tx *gorm.DB) error {
		if _, err := s.splitRepo.WithTx(tx).ResolveClaimed(ids, constants.TransferStatusFailed, nil, nil); err != nil {
			return err
		}
		return s.attemptRepo.WithTx(tx).MarkOutcome(attemptID, constants.AttemptOutcomeRejected, result.ExternalReference, result.Reason, &now)
	})
	if err != nil {
		return err
	}
	invalidateObligationCache()
	logger.Warnw("settlement_automated_rejected",
		"attempt_id", attemptID,
		"split_count", len(ids),
		"reason", result.Reason,
	)
	return &ExternalRejectedError{Reason: result.Reason}
}

func (s *SettlementService) handleUncertain(ctx context.Context, attemptID uint, idempotencyKey string, ids []uint, event string, cause error) error {
	_ = ctx
	// 分账回退待结算，尝试记录保持 uncertain，运营复核前不得重试
	if _, err := s.splitRepo.ReleaseClaimed(ids); err != nil {
		logger.Errorw("settlement_release_claimed_failed",
			"attempt_id", attemptID,
			"error", err,
		)
	}
	invalidateObligationCache()
	logger.Warnw("pix_transfer_uncertain",
		"event", event,
		"attempt_id", attemptID,
		"idempotency_key", idempotencyKey,
		"error", cause,
	)
	s.enqueueReconcile(attemptID, idempotencyKey)
	return ErrUncertainOutcome
}

func (s *SettlementService) enqueueReconcile(attemptID uint, idempotencyKey string) {
	if s.queueClient == nil {
		return
	}
	payload := queue.SettlementReconcilePayload{
		AttemptID:      attemptID,
		IdempotencyKey: idempotencyKey,
	}
	if err := s.queueClient.EnqueueSettlementReconcile(payload, time.Minute); err != nil {
		logger.Warnw("settlement_reconcile_enqueue_failed",
			"attempt_id", attemptID,
			"error", err,
		)
	}
}

// ReconcileAttempt 对一条不确定的转账尝试做外部复核：按幂等键查询处理商
// 的真实结果，并让台账与之对齐。
func (s *SettlementService) ReconcileAttempt(ctx context.Context, attempt *models.SettlementAttempt) error {
	if attempt == nil || attempt.Outcome != constants.AttemptOutcomeUncertain {
		return nil
	}
	ids := parseIDs(attempt.SplitIDs)
	if len(ids) == 0 {
		return nil
	}

	result, err := s.client.GetTransfer(ctx, attempt.IdempotencyKey)
	if err != nil {
		if errors.Is(err, pix.ErrTransferNotFound) {
			// 处理商确认从未收到该转账：释放在途分账，允许重新结算
			return s.reconcileNotFound(attempt, ids)
		}
		// 处理商仍不可达，留待下一轮对账
		return err
	}

	now := time.Now()
	switch result.Status {
	case pix.StatusSuccess:
		reference := result.ExternalReference
		err := s.splitRepo.Transaction(func(tx *gorm.DB) error {
			if _, err := s.splitRepo.WithTx(tx).ResolveUnsettled(ids, constants.TransferStatusCompleted, &reference, &now); err != nil {
				return err
			}
			return s.attemptRepo.WithTx(tx).MarkOutcome(attempt.ID, constants.AttemptOutcomeReconciled, reference, "", &now)
		})
		if err != nil {
			return err
		}
		invalidateObligationCache()
		logger.Infow("settlement_reconciled_completed",
			"attempt_id", attempt.ID,
			"external_reference", reference,
		)
		return nil
	case pix.StatusRejected:
		err := s.splitRepo.Transaction(func(tx *gorm.DB) error {
			if _, err := s.splitRepo.WithTx(tx).ResolveUnsettled(ids, constants.TransferStatusFailed, nil, nil); err != nil {
				return err
			}
			return s.attemptRepo.WithTx(tx).MarkOutcome(attempt.ID, constants.AttemptOutcomeRejected, result.ExternalReference, result.Reason, &now)
		})
		if err != nil {
			return err
		}
		invalidateObligationCache()
		logger.Warnw("settlement_reconciled_rejected",
			"attempt_id", attempt.ID,
			"reason", result.Reason,
		)
		return nil
	default:
		// 处理商仍在受理中，保持 uncertain
		logger.Debugw("settlement_reconcile_still_pending", "attempt_id", attempt.ID)
		return nil
	}
}

func (s *SettlementService) reconcileNotFound(attempt *models.SettlementAttempt, ids []uint) error {
	now := time.Now()
	err := s.splitRepo.Transaction(func(tx *gorm.DB) error {
		if _, err := s.splitRepo.WithTx(tx).ReleaseClaimed(ids); err != nil {
			return err
		}
		return s.attemptRepo.WithTx(tx).MarkOutcome(attempt.ID, constants.AttemptOutcomeRejected, "", "transfer_not_found", &now)
	})
	if err != nil {
		return err
	}
	invalidateObligationCache()
	logger.Warnw("settlement_reconciled_not_found", "attempt_id", attempt.ID)
	return nil
}

// ReconcileDue 周期性对账：逐条复核全部不确定的转账尝试
func (s *SettlementService) ReconcileDue(ctx context.Context) error {
	attempts, err := s.attemptRepo.ListUncertain(100)
	if err != nil {
		return err
	}
	for i := range attempts {
		if err := s.ReconcileAttempt(ctx, &attempts[i]); err != nil {
			logger.Warnw("settlement_reconcile_attempt_failed",
				"attempt_id", attempts[i].ID,
				"error", err,
			)
		}
	}
	return nil
}

// GetAttemptByKey 按幂等键获取转账尝试（对账任务载荷使用）
func (s *SettlementService) GetAttemptByKey(idempotencyKey string) (*models.SettlementAttempt, error) {
	return s.attemptRepo.GetByIdempotencyKey(idempotencyKey)
}

// verifyPendingSet 预检分账集合：必须全部存在、属于该馆方且处于待结算。
// 整批已终态时按幂等空操作报告；真正的权威校验仍由原子占有完成。
func (s *SettlementService) verifyPendingSet(ids []uint, houseID uint) error {
	splits, err := s.splitRepo.GetByIDs(ids)
	if err != nil {
		return err
	}
	if len(splits) != len(ids) {
		return ErrSplitNotFound
	}

	settled := 0
	for _, split := range splits {
		if split.HouseID != houseID {
			return ErrStaleSplitSet
		}
		switch split.TransferStatus {
		case constants.TransferStatusCompleted, constants.TransferStatusFailed:
			settled++
		}
	}
	if settled == len(splits) {
		return ErrAlreadySettled
	}
	for _, split := range splits {
		if split.TransferStatus != constants.TransferStatusPending {
			return ErrStaleSplitSet
		}
	}
	return nil
}

// batchIdempotencyKey 由馆方与排序后的分账ID确定性推导幂等键
func batchIdempotencyKey(houseID uint, ids []uint) string {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, 0, len(sorted))
	for _, id := range sorted {
		parts = append(parts, strconv.FormatUint(uint64(id), 10))
	}
	name := fmt.Sprintf("settlement:%d:%s", houseID, strings.Join(parts, ","))
	return uuid.NewSHA1(settlementKeyNamespace, []byte(name)).String()
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func joinIDs(ids []uint) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(uint64(id), 10))
	}
	return strings.Join(parts, ",")
}

func parseIDs(raw string) []uint {
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.ParseUint(part, 10, 64)
		if err != nil || value == 0 {
			continue
		}
		ids = append(ids, uint(value))
	}
	return ids
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
