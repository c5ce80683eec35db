package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/chatpay_server/internal/api/middleware"
	"github.com/qs3c/chatpay_server/internal/pkg/response"
	"github.com/qs3c/chatpay_server/internal/service"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
	logger              *slog.Logger
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		logger:              logger,
	}
}

// Get 获取当前用户订阅
// GET /api/v1/subscription
func (h *SubscriptionHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	view, err := h.subscriptionService.Get(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	response.Success(c, view)
}
