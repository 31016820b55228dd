package service

import (
	"errors"
	"fmt"
)

// 服务层统一错误定义
var (
	ErrNotFound           = errors.New("记录不存在")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrInvalidPassword    = errors.New("密码错误")

	ErrHouseNotFound = errors.New("馆方不存在")
	ErrInvalidHouse  = errors.New("馆方名称不能为空")
	ErrSplitNotFound = errors.New("分账记录不存在")

	ErrInvalidAmount     = errors.New("分账金额必须大于零")
	ErrInvalidCommission = errors.New("佣金参数非法，分成无法对齐总额")
	ErrDuplicateSplit    = errors.New("该支付与馆方已存在分账记录")

	ErrStaleSplitSet  = errors.New("分账集合已过期，请刷新待结算视图")
	ErrAlreadySettled = errors.New("分账已结算，本次操作不做任何变更")

	ErrInvalidPayoutDestination = errors.New("馆方未配置 Pix 收款目的地")
	ErrUsesNativeSplit          = errors.New("馆方使用处理商原生分账，本引擎不可发起转账")

	ErrBalanceUnavailable  = errors.New("处理商余额暂不可用，请稍后重试")
	ErrInsufficientBalance = errors.New("处理商余额不足")
	ErrExternalRejected    = errors.New("处理商拒绝转账")
	ErrUncertainOutcome    = errors.New("转账结果不明，待对账确认前不得重试")

	ErrPayoutLocked = errors.New("存在待对账的转账，暂不能修改收款信息")
)

// InsufficientBalanceError 余额不足错误（携带缺口金额）
type InsufficientBalanceError struct {
	RequiredCents  int64
	AvailableCents int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("处理商余额不足：缺口 %d 分（需要 %d，可用 %d）",
		e.ShortfallCents(), e.RequiredCents, e.AvailableCents)
}

// Unwrap 支持 errors.Is(err, ErrInsufficientBalance)
func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ShortfallCents 缺口金额（分）
func (e *InsufficientBalanceError) ShortfallCents() int64 {
	shortfall := e.RequiredCents - e.AvailableCents
	if shortfall < 0 {
		return 0
	}
	return shortfall
}

// ExternalRejectedError 处理商明确拒绝错误（携带拒绝原因）
type ExternalRejectedError struct {
	Reason string
}

func (e *ExternalRejectedError) Error() string {
	if e.Reason == "" {
		return ErrExternalRejected.Error()
	}
	return fmt.Sprintf("%s：%s", ErrExternalRejected.Error(), e.Reason)
}

// Unwrap 支持 errors.Is(err, ErrExternalRejected)
func (e *ExternalRejectedError) Unwrap() error {
	return ErrExternalRejected
}
