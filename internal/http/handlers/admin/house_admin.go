package admin

import (
	"errors"
	"strconv"

	"github.com/ceremonyhouse/splitpay/internal/http/response"
	"github.com/ceremonyhouse/splitpay/internal/repository"
	"github.com/ceremonyhouse/splitpay/internal/service"

	"github.com/gin-gonic/gin"
)

// ListHouses 获取馆方列表
func (h *Handler) ListHouses(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	keyword := c.Query("keyword")

	houses, total, err := h.HouseService.List(repository.HouseListFilter{
		Page:     page,
		PageSize: pageSize,
		Keyword:  keyword,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "馆方列表查询失败", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, houses, pagination)
}

// GetHouse 获取馆方详情
func (h *Handler) GetHouse(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	house, err := h.HouseService.GetByID(id)
	if err != nil {
		if errors.Is(err, service.ErrHouseNotFound) {
			respondError(c, response.CodeNotFound, "馆方不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "馆方查询失败", err)
		return
	}

	response.Success(c, house)
}

// CreateHouseRequest 创建馆方请求
type CreateHouseRequest struct {
	Name           string `json:"name" binding:"required"`
	ContactEmail   string `json:"contact_email"`
	PixKey         string `json:"pix_key"`
	PixKeyType     string `json:"pix_key_type"`
	PixHolderName  string `json:"pix_holder_name"`
	HasMPConnected bool   `json:"has_mp_connected"`
}

// CreateHouse 创建馆方
func (h *Handler) CreateHouse(c *gin.Context) {
	var req CreateHouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	house, err := h.HouseService.Create(service.CreateHouseInput{
		Name:           req.Name,
		ContactEmail:   req.ContactEmail,
		PixKey:         req.PixKey,
		PixKeyType:     req.PixKeyType,
		PixHolderName:  req.PixHolderName,
		HasMPConnected: req.HasMPConnected,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidHouse) {
			respondError(c, response.CodeBadRequest, "馆方名称不能为空", nil)
			return
		}
		if errors.Is(err, service.ErrInvalidPayoutDestination) {
			respondError(c, response.CodeBadRequest, "Pix 密钥类型非法", nil)
			return
		}
		respondError(c, response.CodeInternal, "馆方创建失败", err)
		return
	}

	response.Success(c, house)
}

// UpdateHousePayoutRequest 更新收款目的地请求
type UpdateHousePayoutRequest struct {
	PixKey        string `json:"pix_key"`
	PixKeyType    string `json:"pix_key_type"`
	PixHolderName string `json:"pix_holder_name"`
}

// UpdateHousePayout 更新馆方 Pix 收款目的地
func (h *Handler) UpdateHousePayout(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateHousePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	house, err := h.HouseService.UpdatePayout(id, service.UpdatePayoutInput{
		PixKey:        req.PixKey,
		PixKeyType:    req.PixKeyType,
		PixHolderName: req.PixHolderName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHouseNotFound):
			respondError(c, response.CodeNotFound, "馆方不存在", nil)
		case errors.Is(err, service.ErrPayoutLocked):
			respondError(c, response.CodeConflict, "存在待对账的转账，暂不能修改收款信息", nil)
		case errors.Is(err, service.ErrInvalidPayoutDestination):
			respondError(c, response.CodeBadRequest, "Pix 密钥类型非法", nil)
		default:
			respondError(c, response.CodeInternal, "收款信息保存失败", err)
		}
		return
	}

	response.Success(c, house)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "ID 参数非法", nil)
		return 0, false
	}
	return uint(id), true
}
