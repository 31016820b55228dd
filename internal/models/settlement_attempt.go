package models

import (
	"time"
)

// SettlementAttempt 自动转账尝试审计记录。
// 每次对外发起 Pix 转账都会落一行；超时等不确定结果保留为 uncertain，
// 由对账任务复核后迁移到终态。
type SettlementAttempt struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                             // 主键
	HouseID           uint       `gorm:"not null;index" json:"house_id"`                                   // 馆方ID
	IdempotencyKey    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"idempotency_key"`     // 批次幂等键（由分账ID集合确定性推导）
	SplitIDs          string     `gorm:"type:text;not null" json:"split_ids"`                              // 批次内分账ID（逗号分隔，审计用）
	AmountCents       int64      `gorm:"not null" json:"amount_cents"`                                     // 转账金额（分）
	Outcome           string     `gorm:"type:varchar(20);not null;index" json:"outcome"`                   // 结果（completed/rejected/uncertain/reconciled）
	ExternalReference string     `gorm:"type:varchar(255)" json:"external_reference"`                      // 处理商交易号
	FailureReason     string     `gorm:"type:varchar(255)" json:"failure_reason"`                          // 处理商拒绝原因
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`                                            // 终态确认时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                          // 创建时间
	UpdatedAt         time.Time  `json:"updated_at"`                                                       // 更新时间
}

// TableName 指定表名
func (SettlementAttempt) TableName() string {
	return "settlement_attempts"
}
