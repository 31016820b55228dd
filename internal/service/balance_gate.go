package service

import (
	"context"

	"github.com/ceremonyhouse/splitpay/internal/logger"
	"github.com/ceremonyhouse/splitpay/internal/processor/pix"
)

// BalanceGate 余额闸门：自动转账前对处理商可用余额做前置检查。
// 结果不缓存，每次确认转账都重新查询；任何传输或鉴权失败一律按
// 「余额不可用」处理，而不是按零余额处理。
type BalanceGate struct {
	client ProcessorClient
}

// NewBalanceGate 创建余额闸门
func NewBalanceGate(client ProcessorClient) *BalanceGate {
	return &BalanceGate{client: client}
}

// Check 查询当前可用余额，ok 为 false 表示余额不可用
func (g *BalanceGate) Check(ctx context.Context) (*pix.Balance, bool) {
	if g == nil || g.client == nil {
		return nil, false
	}
	balance, err := g.client.GetBalance(ctx)
	if err != nil {
		logger.Warnw("balance_gate_unavailable", "error", err)
		return nil, false
	}
	if balance == nil {
		return nil, false
	}
	return balance, true
}

// HasSufficient 在转账确认时点评估余额是否足额
func (g *BalanceGate) HasSufficient(ctx context.Context, amountCents int64) (*pix.Balance, bool, bool) {
	balance, ok := g.Check(ctx)
	if !ok {
		return nil, false, false
	}
	return balance, balance.AvailableCents >= amountCents, true
}
