package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/qrcode_go_server/internal/api/middleware"
	"github.com/qs3c/qrcode_go_server/internal/model/dto"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
	"github.com/qs3c/qrcode_go_server/internal/service"
)

type QRCodeHandler struct {
	qrcodes *service.QRCodeService
}

func NewQRCodeHandler(qrcodes *service.QRCodeService) *QRCodeHandler {
	return &QRCodeHandler{qrcodes: qrcodes}
}

// Create 生成二维码
// POST /api/v1/qrcodes
func (h *QRCodeHandler) Create(c *gin.Context) {
	user, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.qrcodes.Create(c.Request.Context(), user, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "二维码已生成", info)
}

// List 我的二维码
// GET /api/v1/qrcodes
func (h *QRCodeHandler) List(c *gin.Context) {
	user, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.qrcodes.List(user)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// Download 下载二维码文件
// GET /api/v1/qrcodes/:public_id/download/:format
func (h *QRCodeHandler) Download(c *gin.Context) {
	user, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	file, err := h.qrcodes.Download(user, c.Param("public_id"), c.Param("format"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", file.ContentType)
	c.FileAttachment(file.Path, file.Filename)
}

// Delete 删除二维码
// DELETE /api/v1/qrcodes/:public_id
func (h *QRCodeHandler) Delete(c *gin.Context) {
	user, ok := middleware.GetAccount(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	if err := h.qrcodes.Delete(c.Request.Context(), user, c.Param("public_id")); err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// PublicView 扫码访问
// GET /qr/:public_id
func (h *QRCodeHandler) PublicView(c *gin.Context) {
	view, err := h.qrcodes.PublicView(c.Param("public_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, view)
}

// Preview PNG 预览
// GET /qr/:public_id/preview
func (h *QRCodeHandler) Preview(c *gin.Context) {
	file, err := h.qrcodes.Preview(c.Param("public_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", file.ContentType)
	c.Header("Cache-Control", "public, max-age=300")
	c.File(file.Path)
}
