package middleware

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
	"github.com/qs3c/qrcode_go_server/internal/service"
)

const AccountKey = "account"

// Reconcile 加载当前用户并在处理请求前执行到期回落，需放在 Auth 之后
func Reconcile(authService *service.AuthService, subs *service.SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AbortWithError(c, response.CodeAuthFailed, "")
			return
		}

		user, err := authService.GetUserByID(userID)
		if err != nil {
			if err == service.ErrUserNotFound {
				response.AbortWithError(c, response.CodeAuthFailed, "账号不存在")
				return
			}
			log.WithError(err).WithField("user_id", userID).Error("Failed to load account")
			response.AbortWithError(c, response.CodeServerError, "")
			return
		}

		user, err = subs.Reconcile(c.Request.Context(), user)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Failed to reconcile plan")
			response.AbortWithError(c, response.CodeServerError, "")
			return
		}

		c.Set(AccountKey, user)
		c.Next()
	}
}

// GetAccount 从上下文获取当前用户
func GetAccount(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get(AccountKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}

// AdminOnly 仅管理员可访问，需放在 Reconcile 之后
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetAccount(c)
		if !ok {
			response.AbortWithError(c, response.CodeAuthFailed, "")
			return
		}
		if !user.IsAdmin {
			response.AbortWithError(c, response.CodePermissionDenied, "需要管理员权限")
			return
		}
		c.Next()
	}
}
