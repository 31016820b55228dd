package models

import (
	"time"
)

// PaymentSplit 分账台账记录：一笔支付在平台与馆方之间的一次分配。
// 金额字段（单位：分）在创建后不可变；结算只改写 transfer_status、
// transfer_reference、transferred_at 三个字段，且记录永不删除。
type PaymentSplit struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                                                             // 主键
	PaymentID         uint       `gorm:"not null;index;index:idx_payment_split_unique,unique" json:"payment_id"`                           // 原始支付ID
	HouseID           uint       `gorm:"not null;index:idx_split_house_status;index:idx_payment_split_unique,unique" json:"house_id"`      // 馆方ID
	TotalAmountCents  int64      `gorm:"not null" json:"total_amount_cents"`                                                               // 支付总金额（分）
	PortalAmountCents int64      `gorm:"not null" json:"portal_amount_cents"`                                                              // 平台分成（分）
	HouseAmountCents  int64      `gorm:"not null" json:"house_amount_cents"`                                                               // 馆方分成（分）
	CommissionPercent Percent    `gorm:"type:decimal(10,4);not null;default:0" json:"commission_percent"`                                  // 创建时的佣金比例
	CommissionType    string     `gorm:"type:varchar(20);not null;default:'percentage'" json:"commission_type"`                            // 佣金类型（percentage/fixed/flat_fee，仅展示与审计）
	TransferStatus    string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_split_house_status" json:"transfer_status"`  // 结算状态
	TransferReference *string    `gorm:"type:varchar(255)" json:"transfer_reference,omitempty"`                                            // 外部交易号或人工备注，仅完成时写入
	TransferredAt     *time.Time `gorm:"index" json:"transferred_at,omitempty"`                                                            // 结算完成时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                                                          // 创建时间

	House House `gorm:"foreignKey:HouseID" json:"house,omitempty"` // 所属馆方
}

// TableName 指定表名
func (PaymentSplit) TableName() string {
	return "payment_splits"
}
