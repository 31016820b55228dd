package admin

import (
	"errors"
	"strconv"
	"time"

	"github.com/ceremonyhouse/splitpay/internal/http/response"
	"github.com/ceremonyhouse/splitpay/internal/models"
	"github.com/ceremonyhouse/splitpay/internal/repository"
	"github.com/ceremonyhouse/splitpay/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateSplitRequest 创建分账请求
type CreateSplitRequest struct {
	PaymentID         uint           `json:"payment_id" binding:"required"`
	HouseID           uint           `json:"house_id" binding:"required"`
	TotalAmountCents  int64          `json:"total_amount_cents" binding:"required"`
	CommissionPercent models.Percent `json:"commission_percent"`
	CommissionType    string         `json:"commission_type" binding:"required"`
}

// CreateSplit 创建分账记录
func (h *Handler) CreateSplit(c *gin.Context) {
	var req CreateSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	split, err := h.SplitService.CreateSplit(c.Request.Context(), service.CreateSplitInput{
		PaymentID:         req.PaymentID,
		HouseID:           req.HouseID,
		TotalAmountCents:  req.TotalAmountCents,
		CommissionPercent: req.CommissionPercent,
		CommissionType:    req.CommissionType,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHouseNotFound):
			respondError(c, response.CodeNotFound, "馆方不存在", nil)
		case errors.Is(err, service.ErrInvalidAmount):
			respondError(c, response.CodeBadRequest, "分账金额必须大于零", nil)
		case errors.Is(err, service.ErrInvalidCommission):
			respondError(c, response.CodeUnprocessable, "佣金参数非法", nil)
		case errors.Is(err, service.ErrDuplicateSplit):
			respondError(c, response.CodeConflict, "该支付与馆方已存在分账记录", nil)
		default:
			respondError(c, response.CodeInternal, "分账创建失败", err)
		}
		return
	}

	response.Success(c, split)
}

// GetSplitHistory 获取已结算分账历史
func (h *Handler) GetSplitHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.SplitHistoryFilter{
		Page:     page,
		PageSize: pageSize,
	}
	if raw := c.Query("house_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.HouseID = uint(id)
		}
	}
	if raw := c.Query("transferred_from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.TransferredFrom = &t
		}
	}
	if raw := c.Query("transferred_to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.TransferredTo = &t
		}
	}

	splits, total, err := h.SplitService.ListCompleted(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "结算历史查询失败", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, splits, pagination)
}

// GetSettlementTotals 获取累计结算统计
func (h *Handler) GetSettlementTotals(c *gin.Context) {
	totals, err := h.SplitService.GetTotals()
	if err != nil {
		respondError(c, response.CodeInternal, "结算统计查询失败", err)
		return
	}

	response.Success(c, totals)
}
