package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/qrcode_go_server/internal/api/middleware"
	"github.com/qs3c/qrcode_go_server/internal/model/dto"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
	"github.com/qs3c/qrcode_go_server/internal/service"
)

type AdminHandler struct {
	admin *service.AdminService
	sweep *service.SweepService
}

func NewAdminHandler(admin *service.AdminService, sweep *service.SweepService) *AdminHandler {
	return &AdminHandler{admin: admin, sweep: sweep}
}

// ListUsers 用户列表
// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	resp, err := h.admin.ListUsers()
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// UpdateUser 编辑用户
// PUT /api/v1/admin/users/:id
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.admin.UpdateUser(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "更新成功", info)
}

// DeleteUser 删除用户及其二维码
// DELETE /api/v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}
	actor, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	if err := h.admin.DeleteUser(c.Request.Context(), actor.ID, userID); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// ListUserCodes 用户的二维码
// GET /api/v1/admin/users/:id/qrcodes
func (h *AdminHandler) ListUserCodes(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}

	items, err := h.admin.ListUserCodes(userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, items)
}

// DeleteCode 删除任意二维码
// DELETE /api/v1/admin/qrcodes/:public_id
func (h *AdminHandler) DeleteCode(c *gin.Context) {
	if err := h.admin.DeleteCode(c.Request.Context(), c.Param("public_id")); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// Stats 统计
// GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, stats)
}

// Permissions 目录和数据库文件权限
// GET /api/v1/admin/permissions
func (h *AdminHandler) Permissions(c *gin.Context) {
	response.Success(c, h.admin.Permissions())
}

// Sweep 手动执行一致性清理，dry_run=true 时只报告
// POST /api/v1/admin/sweep
func (h *AdminHandler) Sweep(c *gin.Context) {
	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))

	report, err := h.sweep.Run(c.Request.Context(), dryRun)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, report)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "无效的用户 ID")
		return 0, false
	}
	return id, true
}
