package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/qrcode_go_server/internal/pkg/jwt"
	"github.com/qs3c/qrcode_go_server/internal/pkg/response"
)

const UserIDKey = "userID"

// Auth 校验 Bearer 令牌，写入用户 ID
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
		if !found {
			if scheme == "" {
				response.AbortWithError(c, response.CodeAuthFailed, "请提供认证信息")
			} else {
				response.AbortWithError(c, response.CodeAuthFailed, "认证格式错误")
			}
			return
		}
		if !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.AbortWithError(c, response.CodeAuthFailed, "认证格式错误")
			return
		}

		claims, err := jwt.ParseToken(strings.TrimSpace(token), jwtSecret)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				response.AbortWithError(c, response.CodeAuthFailed, "登录已过期，请重新登录")
			} else {
				response.AbortWithError(c, response.CodeAuthFailed, "认证失败")
			}
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	id, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := id.(int64)
	return userID, ok
}
