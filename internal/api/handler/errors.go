package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/qs3c/qrcode_go_server/internal/api/middleware"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
	"github.com/qs3c/qrcode_go_server/internal/plan"
	"github.com/qs3c/qrcode_go_server/internal/service"
)

// 业务错误到响应码的映射
var errorCodes = []struct {
	err  error
	code int
}{
	{service.ErrInvalidCredentials, response.CodeAuthFailed},

	{service.ErrUserNotFound, response.CodeResourceNotFound},
	{service.ErrQRCodeNotFound, response.CodeResourceNotFound},
	{service.ErrArtifactMissing, response.CodeResourceNotFound},
	{service.ErrCheckoutNotFound, response.CodeResourceNotFound},

	{service.ErrQRCodePermission, response.CodePermissionDenied},
	{service.ErrCheckoutForbidden, response.CodePermissionDenied},
	{service.ErrDeleteSelf, response.CodePermissionDenied},

	{service.ErrQuotaExceeded, response.CodeQuotaExceeded},

	{service.ErrDeleteTooEarly, response.CodeNotEligible},
	{service.ErrPlanStillActive, response.CodeNotEligible},

	{service.ErrGatewayUnavailable, response.CodeGatewayError},

	{service.ErrEmailExists, response.CodeParamError},
	{service.ErrUsernameExists, response.CodeParamError},
	{service.ErrInvalidPromoCode, response.CodeParamError},
	{service.ErrUnknownPlan, response.CodeParamError},
	{service.ErrPlanNotPurchasable, response.CodeParamError},
	{service.ErrCheckoutIncomplete, response.CodeParamError},
	{service.ErrNoActivePlan, response.CodeParamError},
	{service.ErrUnsupportedFormat, response.CodeParamError},
	{service.ErrInvalidStyle, response.CodeParamError},
	{service.ErrInvalidContent, response.CodeParamError},
	{plan.ErrInvalidPeriod, response.CodeParamError},
}

// writeError 输出业务错误；未识别的错误记录日志并返回 5000
func writeError(c *gin.Context, err error) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			response.Error(c, ec.code, err.Error())
			return
		}
	}

	log.WithError(err).WithFields(log.Fields{
		"request_id": middleware.GetRequestID(c),
		"path":       c.Request.URL.Path,
	}).Error("Unhandled error")
	response.ServerError(c, "")
}
