package queue

import (
	"encoding/json"

	"github.com/ceremonyhouse/splitpay/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskSettlementReconcile 结算对账任务
	TaskSettlementReconcile = constants.TaskSettlementReconcile
)

// SettlementReconcilePayload 结算对账任务载荷
type SettlementReconcilePayload struct {
	AttemptID      uint   `json:"attempt_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// NewSettlementReconcileTask 创建结算对账任务
func NewSettlementReconcileTask(payload SettlementReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementReconcile, body), nil
}
