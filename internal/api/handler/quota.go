package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/chatpay_server/internal/api/middleware"
	"github.com/qs3c/chatpay_server/internal/pkg/response"
	"github.com/qs3c/chatpay_server/internal/service"
)

type QuotaHandler struct {
	quotaService *service.QuotaService
	logger       *slog.Logger
}

func NewQuotaHandler(quotaService *service.QuotaService, logger *slog.Logger) *QuotaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaHandler{
		quotaService: quotaService,
		logger:       logger,
	}
}

// GetQuota 获取当前用户 token 配额
// GET /api/v1/user/quota
func (h *QuotaHandler) GetQuota(c *gin.Context) {
	// TokenBudget 中间件已解析时直接复用
	if info, ok := middleware.GetTokenBudget(c); ok {
		response.Success(c, info)
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.quotaService.GetBudget(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	response.Success(c, info)
}
