package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/qrcode_go_server/internal/api/middleware"
	"github.com/qs3c/qrcode_go_server/internal/model/dto"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
	"github.com/qs3c/qrcode_go_server/internal/service"
)

type UserHandler struct {
	userService *service.UserService
	subs        *service.SubscriptionService
}

func NewUserHandler(userService *service.UserService, subs *service.SubscriptionService) *UserHandler {
	return &UserHandler{
		userService: userService,
		subs:        subs,
	}
}

// GetProfile 获取当前用户信息
// GET /api/v1/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	profile, err := h.userService.GetProfile(user)
	if err != nil {
		writeError(c, err)
		return
	}
	if profile.Subscription, err = h.subs.Status(user); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, profile)
}

// UpdateProfile 更新用户信息
// PUT /api/v1/user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	profile, err := h.userService.UpdateProfile(user.ID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, "更新成功", profile)
}
