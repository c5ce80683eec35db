package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/chatpay_server/internal/pkg/identity"
	"github.com/qs3c/chatpay_server/internal/pkg/response"
)

const (
	UserIDKey = "userID"
)

// Auth ID 令牌认证中间件，每个请求都重新校验
func Auth(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			response.AuthError(c, "authorization header must be a bearer token")
			return
		}

		userID, err := verifier.VerifyIDToken(c.Request.Context(), tokenString)
		if err != nil {
			response.AuthError(c, IdentityErrorMessage(err))
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// IdentityErrorMessage 不向客户端暴露令牌解析细节
func IdentityErrorMessage(err error) string {
	if errors.Is(err, identity.ErrExpiredToken) {
		return identity.ErrExpiredToken.Error()
	}
	return identity.ErrInvalidToken.Error()
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}
