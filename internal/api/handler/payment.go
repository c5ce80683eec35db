package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/chatpay_server/internal/api/middleware"
	"github.com/qs3c/chatpay_server/internal/model/dto"
	"github.com/qs3c/chatpay_server/internal/pkg/identity"
	"github.com/qs3c/chatpay_server/internal/pkg/response"
	"github.com/qs3c/chatpay_server/internal/service"
)

const (
	verifySuccessMessage = "payment verified and subscription updated"
	verifyReplayMessage  = "payment already applied"
)

type PaymentHandler struct {
	orderService        *service.OrderService
	subscriptionService *service.SubscriptionService
	verifier            identity.Verifier
	logger              *slog.Logger
}

func NewPaymentHandler(orderService *service.OrderService, subscriptionService *service.SubscriptionService, verifier identity.Verifier, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{
		orderService:        orderService,
		subscriptionService: subscriptionService,
		verifier:            verifier,
		logger:              logger,
	}
}

// CreateOrder 创建支付订单
// POST /api/v1/payments/create-order
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	userID, ok := h.authenticate(c, req.IDToken)
	if !ok {
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), userID, req.PlanID, req.Amount)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, order)
}

// Verify 校验支付签名并激活订阅
// POST /api/v1/payments/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	userID, ok := h.authenticate(c, req.IDToken)
	if !ok {
		return
	}

	sub, applied, err := h.subscriptionService.VerifyAndActivate(c.Request.Context(), service.ActivateInput{
		UserID:    userID,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		PlanID:    req.PlanID,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	message := verifySuccessMessage
	if !applied {
		message = verifyReplayMessage
	}

	response.Success(c, &dto.VerifyPaymentResponse{
		Success: true,
		Message: message,
		Subscription: &dto.SubscriptionInfo{
			PlanID:  sub.PlanID,
			Status:  string(sub.Status),
			EndDate: sub.EndDate,
		},
	})
}

// authenticate 校验请求体中的 idToken，失败时已写入 401
func (h *PaymentHandler) authenticate(c *gin.Context, idToken string) (string, bool) {
	userID, err := h.verifier.VerifyIDToken(c.Request.Context(), idToken)
	if err != nil {
		h.logger.Info("id token rejected", "path", c.FullPath(), "error", err)
		response.AuthError(c, middleware.IdentityErrorMessage(err))
		return "", false
	}
	return userID, true
}

func (h *PaymentHandler) writeServiceError(c *gin.Context, err error) {
	writeServiceError(c, h.logger, err)
}

// writeServiceError 把服务层错误映射为 HTTP 状态码
func writeServiceError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrAuth):
		response.AuthError(c, "")
	case errors.Is(err, service.ErrSignatureInvalid):
		response.SignatureError(c, "")
	case errors.Is(err, service.ErrPaymentClaimed):
		response.ParamError(c, service.ErrPaymentClaimed.Error())
	case errors.Is(err, service.ErrGateway):
		logger.Error("payment gateway call failed", "path", c.FullPath(), "error", err)
		response.ServerError(c, service.ErrGateway.Error())
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timed out", "path", c.FullPath(), "error", err)
		response.Error(c, http.StatusInternalServerError, "request timed out")
	default:
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		response.ServerError(c, "")
	}
}
