package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/qrcode_go_server/internal/api/middleware"
	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/model/dto"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
	"github.com/qs3c/qrcode_go_server/internal/service"
)

type SubscriptionHandler struct {
	subs *service.SubscriptionService
}

func NewSubscriptionHandler(subs *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs}
}

// Plans 套餐目录
// GET /api/v1/plans
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	response.Success(c, h.subs.Catalog())
}

// Status 当前订阅状态
// GET /api/v1/subscription
func (h *SubscriptionHandler) Status(c *gin.Context) {
	user, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	h.writeStatus(c, user, "success")
}

// ApplyPromo 使用优惠码
// POST /api/v1/subscription/promo
func (h *SubscriptionHandler) ApplyPromo(c *gin.Context) {
	user, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.PromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	updated, err := h.subs.ApplyPromoCode(c.Request.Context(), user, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	h.writeStatus(c, updated, "套餐已开通")
}

// Checkout 发起支付
// POST /api/v1/subscription/checkout
func (h *SubscriptionHandler) Checkout(c *gin.Context) {
	user, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.subs.StartCheckout(c.Request.Context(), user, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// CompleteCheckout 支付完成后开通套餐
// POST /api/v1/subscription/checkout/complete
func (h *SubscriptionHandler) CompleteCheckout(c *gin.Context) {
	user, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CompleteCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	updated, err := h.subs.CompleteCheckout(c.Request.Context(), user, req.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	h.writeStatus(c, updated, "套餐已开通")
}

// Cancel 取消续费
// POST /api/v1/subscription/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	user, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	updated, err := h.subs.Cancel(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}
	h.writeStatus(c, updated, "已取消续费，套餐将在到期后失效")
}

func (h *SubscriptionHandler) writeStatus(c *gin.Context, user *model.User, message string) {
	status, err := h.subs.Status(user)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, message, status)
}
