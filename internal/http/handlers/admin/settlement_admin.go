package admin

import (
	"errors"

	"github.com/ceremonyhouse/splitpay/internal/http/response"
	"github.com/ceremonyhouse/splitpay/internal/service"

	"github.com/gin-gonic/gin"
)

// GetObligations 获取各馆方待结算义务聚合视图
func (h *Handler) GetObligations(c *gin.Context) {
	obligations, err := h.SplitService.ListObligations(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "待结算视图查询失败", err)
		return
	}

	response.Success(c, obligations)
}

// GetHousePendingSplits 获取单个馆方的待结算分账明细
func (h *Handler) GetHousePendingSplits(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	splits, totalCents, err := h.SplitService.GetPendingForHouse(id)
	if err != nil {
		if errors.Is(err, service.ErrHouseNotFound) {
			respondError(c, response.CodeNotFound, "馆方不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "待结算明细查询失败", err)
		return
	}

	response.Success(c, gin.H{
		"splits":             splits,
		"total_amount_cents": totalCents,
	})
}

// SettleManualRequest 人工结算请求
type SettleManualRequest struct {
	HouseID   uint   `json:"house_id" binding:"required"`
	SplitIDs  []uint `json:"split_ids" binding:"required"`
	Reference string `json:"reference"`
}

// SettleManual 人工认定结算
func (h *Handler) SettleManual(c *gin.Context) {
	var req SettleManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	splits, err := h.SettlementService.SettleManual(c.Request.Context(), req.HouseID, req.SplitIDs, req.Reference)
	if err != nil {
		h.respondSettlementError(c, err)
		return
	}

	response.Success(c, gin.H{"splits": splits})
}

// SettleAutomatedRequest 自动结算请求
type SettleAutomatedRequest struct {
	HouseID  uint   `json:"house_id" binding:"required"`
	SplitIDs []uint `json:"split_ids" binding:"required"`
}

// SettleAutomated 自动 Pix 结算
func (h *Handler) SettleAutomated(c *gin.Context) {
	var req SettleAutomatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	result, err := h.SettlementService.SettleAutomated(c.Request.Context(), req.HouseID, req.SplitIDs)
	if err != nil {
		h.respondSettlementError(c, err)
		return
	}

	response.Success(c, result)
}

// GetProcessorBalance 查询处理商可用余额
func (h *Handler) GetProcessorBalance(c *gin.Context) {
	balance, ok := h.BalanceGate.Check(c.Request.Context())
	if !ok {
		respondError(c, response.CodeUnavailable, "处理商余额暂不可用", nil)
		return
	}

	response.Success(c, balance)
}

// GetSettlementAttempt 按幂等键查询结算尝试
func (h *Handler) GetSettlementAttempt(c *gin.Context) {
	key := c.Param("key")
	attempt, err := h.SettlementService.GetAttemptByKey(key)
	if err != nil {
		respondError(c, response.CodeInternal, "结算尝试查询失败", err)
		return
	}
	if attempt == nil {
		respondError(c, response.CodeNotFound, "结算尝试不存在", nil)
		return
	}

	response.Success(c, attempt)
}

// respondSettlementError 统一映射结算错误到响应码。
func (h *Handler) respondSettlementError(c *gin.Context, err error) {
	var insufficientErr *service.InsufficientBalanceError
	var rejectedErr *service.ExternalRejectedError

	switch {
	case errors.Is(err, service.ErrHouseNotFound):
		respondError(c, response.CodeNotFound, "馆方不存在", nil)
	case errors.Is(err, service.ErrSplitNotFound):
		respondError(c, response.CodeNotFound, "分账记录不存在", nil)
	case errors.Is(err, service.ErrAlreadySettled):
		response.SuccessWithMsg(c, "分账已结算，本次操作未做任何变更", nil)
	case errors.Is(err, service.ErrStaleSplitSet):
		respondError(c, response.CodeConflict, "分账集合已过期，请刷新待结算视图", nil)
	case errors.Is(err, service.ErrInvalidPayoutDestination):
		respondError(c, response.CodeUnprocessable, "馆方未配置 Pix 收款目的地", nil)
	case errors.Is(err, service.ErrUsesNativeSplit):
		respondError(c, response.CodeUnprocessable, "馆方使用处理商原生分账，不可发起转账", nil)
	case errors.Is(err, service.ErrBalanceUnavailable):
		respondError(c, response.CodeUnavailable, "处理商余额暂不可用，请稍后重试", nil)
	case errors.As(err, &insufficientErr):
		respondErrorWithData(c, response.CodeUnprocessable, "处理商余额不足", gin.H{
			"required_cents":  insufficientErr.RequiredCents,
			"available_cents": insufficientErr.AvailableCents,
			"shortfall_cents": insufficientErr.ShortfallCents(),
		}, nil)
	case errors.As(err, &rejectedErr):
		respondErrorWithData(c, response.CodeBadGateway, "处理商拒绝转账", gin.H{
			"reason": rejectedErr.Reason,
		}, nil)
	case errors.Is(err, service.ErrUncertainOutcome):
		respondError(c, response.CodeConflict, "转账结果不明，待对账确认前不得重试", nil)
	default:
		respondError(c, response.CodeInternal, "结算执行失败", err)
	}
}
