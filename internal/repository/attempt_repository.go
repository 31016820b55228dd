package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/ceremonyhouse/splitpay/internal/constants"
	"github.com/ceremonyhouse/splitpay/internal/models"

	"gorm.io/gorm"
)

// AttemptRepository 自动转账尝试数据访问接口
type AttemptRepository interface {
	WithTx(tx *gorm.DB) AttemptRepository

	Create(attempt *models.SettlementAttempt) error
	GetByIdempotencyKey(key string) (*models.SettlementAttempt, error)
	ListUncertain(limit int) ([]models.SettlementAttempt, error)
	MarkOutcome(id uint, outcome, externalReference, failureReason string, resolvedAt *time.Time) error
	HasUnresolvedForHouse(houseID uint) (bool, error)
}

// GormAttemptRepository GORM 实现
type GormAttemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository 创建转账尝试仓储
func NewAttemptRepository(db *gorm.DB) *GormAttemptRepository {
	return &GormAttemptRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAttemptRepository) WithTx(tx *gorm.DB) AttemptRepository {
	if tx == nil {
		return r
	}
	return &GormAttemptRepository{db: tx}
}

// Create 创建转账尝试记录
func (r *GormAttemptRepository) Create(attempt *models.SettlementAttempt) error {
	if attempt == nil {
		return nil
	}
	return r.db.Create(attempt).Error
}

// GetByIdempotencyKey 按幂等键获取尝试记录
func (r *GormAttemptRepository) GetByIdempotencyKey(key string) (*models.SettlementAttempt, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var attempt models.SettlementAttempt
	if err := r.db.Where("idempotency_key = ?", key).First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

// ListUncertain 获取待对账的不确定尝试（创建时间升序）
func (r *GormAttemptRepository) ListUncertain(limit int) ([]models.SettlementAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	attempts := make([]models.SettlementAttempt, 0)
	err := r.db.
		Where("outcome = ?", constants.AttemptOutcomeUncertain).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// MarkOutcome 更新尝试结果
func (r *GormAttemptRepository) MarkOutcome(id uint, outcome, externalReference, failureReason string, resolvedAt *time.Time) error {
	if id == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"outcome": strings.TrimSpace(outcome),
	}
	if externalReference != "" {
		updates["external_reference"] = externalReference
	}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	}
	if resolvedAt != nil {
		updates["resolved_at"] = *resolvedAt
	}
	return r.db.Model(&models.SettlementAttempt{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// HasUnresolvedForHouse 馆方是否存在未了结的不确定尝试
func (r *GormAttemptRepository) HasUnresolvedForHouse(houseID uint) (bool, error) {
	if houseID == 0 {
		return false, nil
	}
	var count int64
	err := r.db.Model(&models.SettlementAttempt{}).
		Where("house_id = ? AND outcome = ?", houseID, constants.AttemptOutcomeUncertain).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
