package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/chatpay_server/internal/model/dto"
	"github.com/qs3c/chatpay_server/internal/pkg/response"
	"github.com/qs3c/chatpay_server/internal/service"
)

const (
	TokenBudgetKey   = "tokenBudget"
	TokenLimitHeader = "X-Token-Limit"
)

// TokenBudget 解析当前用户的 token 配额，供聊天发送等接口使用
// 只解析配额，不做计量
func TokenBudget(quotaService *service.QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			return
		}

		info, err := quotaService.GetBudget(c.Request.Context(), userID)
		if err != nil {
			response.ServerError(c, "failed to resolve token budget")
			return
		}

		c.Set(TokenBudgetKey, info)
		c.Header(TokenLimitHeader, strconv.Itoa(info.TokenLimit))
		c.Next()
	}
}

// GetTokenBudget 从上下文获取配额
func GetTokenBudget(c *gin.Context) (*dto.QuotaInfo, bool) {
	v, exists := c.Get(TokenBudgetKey)
	if !exists {
		return nil, false
	}
	info, ok := v.(*dto.QuotaInfo)
	return info, ok
}
