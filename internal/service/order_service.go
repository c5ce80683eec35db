package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/qs3c/chatpay_server/config"
	"github.com/qs3c/chatpay_server/internal/model"
	"github.com/qs3c/chatpay_server/internal/model/dto"
	"github.com/qs3c/chatpay_server/internal/pkg/gateway"
)

// OrderGateway 支付网关下单能力
type OrderGateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
}

type OrderService struct {
	gateway  OrderGateway
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrderService(gw OrderGateway, cfg *config.Config, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	currency := cfg.Payment.Currency
	if currency == "" {
		currency = "INR"
	}
	return &OrderService{
		gateway:  gw,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateOrder 为指定套餐在网关创建订单，本地不落库
func (s *OrderService) CreateOrder(ctx context.Context, userID, planID string, amount float64) (*dto.CreateOrderResponse, error) {
	if userID == "" {
		return nil, ErrAuth
	}
	if planID == "" {
		return nil, fmt.Errorf("%w: planId is required", ErrValidation)
	}
	if !model.IsKnownPlan(planID) {
		return nil, fmt.Errorf("%w: unknown plan %q", ErrValidation, planID)
	}

	minor, err := toMinorUnits(amount)
	if err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   minor,
		Currency: s.currency,
		Receipt:  receiptFor(userID, s.now()),
		Notes: map[string]string{
			"userId": userID,
			"planId": planID,
		},
	})
	if err != nil {
		s.logger.Error("create order failed",
			"user_id", userID,
			"plan_id", planID,
			"amount", minor,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	currency := order.Currency
	if currency == "" {
		currency = s.currency
	}

	s.logger.Info("order created",
		"user_id", userID,
		"plan_id", planID,
		"order_id", order.ID,
		"amount", order.Amount,
	)

	return &dto.CreateOrderResponse{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: currency,
	}, nil
}

// toMinorUnits 金额转最小货币单位：round(amount * 100)
func toMinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	}
	minor := math.Round(amount * 100)
	if minor < 1 || minor > math.MaxInt64/2 {
		return 0, fmt.Errorf("%w: amount out of range", ErrValidation)
	}
	return int64(minor), nil
}

// receiptFor 生成便于追踪的收据号，不保证唯一
func receiptFor(userID string, now time.Time) string {
	prefix := []rune(userID)
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	return fmt.Sprintf("rcpt_%s_%d", string(prefix), now.UnixMilli())
}
