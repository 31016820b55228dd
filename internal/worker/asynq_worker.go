package worker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ceremonyhouse/splitpay/internal/logger"
	"github.com/ceremonyhouse/splitpay/internal/provider"
	"github.com/ceremonyhouse/splitpay/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskSettlementReconcile, c.handleSettlementReconcile)
}

func (c *Consumer) handleSettlementReconcile(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_settlement_reconcile_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SettlementReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_settlement_reconcile_unmarshal_failed", "error", err)
		return err
	}
	key := strings.TrimSpace(payload.IdempotencyKey)
	if key == "" {
		logger.Debugw("worker_settlement_reconcile_skip_invalid_payload", "attempt_id", payload.AttemptID)
		return nil
	}
	attempt, err := c.AttemptRepo.GetByIdempotencyKey(key)
	if err != nil {
		logger.Warnw("worker_settlement_reconcile_fetch_failed", "idempotency_key", key, "error", err)
		return err
	}
	if attempt == nil {
		logger.Debugw("worker_settlement_reconcile_skip_attempt_not_found", "idempotency_key", key)
		return nil
	}
	if err := c.SettlementService.ReconcileAttempt(ctx, attempt); err != nil {
		logger.Warnw("worker_settlement_reconcile_failed",
			"attempt_id", attempt.ID,
			"idempotency_key", key,
			"error", err,
		)
		return err
	}
	return nil
}
