package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/qrcode_go_server/internal/model/dto"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
	"github.com/qs3c/qrcode_go_server/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register 用户注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Register(&req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, "注册成功", resp)
}

// Login 用户名密码登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Login(&req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, "登录成功", resp)
}
