package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qs3c/chatpay_server/internal/model"
	"github.com/qs3c/chatpay_server/internal/model/dto"
	"github.com/qs3c/chatpay_server/internal/pkg/pubsub"
	"github.com/qs3c/chatpay_server/internal/pkg/signature"
	"github.com/qs3c/chatpay_server/internal/repository"
)

// SubscriptionStore 订阅存储，Activate 是唯一的提交点
type SubscriptionStore interface {
	Get(ctx context.Context, userID string) (*model.Subscription, error)
	Activate(ctx context.Context, userID string, sub *model.Subscription) (*model.Subscription, bool, error)
}

// Locker 跨实例的用户级互斥
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// EventPublisher 订阅事件发布
type EventPublisher interface {
	PublishActivated(ctx context.Context, evt *pubsub.SubscriptionEvent) error
}

// ActivateInput 客户端回传的支付结果
type ActivateInput struct {
	UserID    string
	OrderID   string
	PaymentID string
	Signature string
	PlanID    string
}

type SubscriptionService struct {
	store     SubscriptionStore
	verifier  *signature.Verifier
	locker    Locker
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewSubscriptionService locker 和 publisher 可以为 nil
func NewSubscriptionService(store SubscriptionStore, verifier *signature.Verifier, locker Locker, publisher EventPublisher, logger *slog.Logger) *SubscriptionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionService{
		store:     store,
		verifier:  verifier,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock 替换时钟，测试使用
func (s *SubscriptionService) SetClock(now func() time.Time) {
	s.now = now
}

// VerifyAndActivate 校验支付签名并激活订阅，applied 表示本次是否生效
// 同一 (orderId, paymentId) 重复提交返回已存储的状态，不会再次延长
func (s *SubscriptionService) VerifyAndActivate(ctx context.Context, in ActivateInput) (*model.Subscription, bool, error) {
	if err := validateActivateInput(in); err != nil {
		s.logger.Info("verify payment rejected", "event", "validation_failed", "user_id", in.UserID, "error", err)
		return nil, false, err
	}

	if !s.verifier.Verify(in.OrderID, in.PaymentID, in.Signature) {
		// 只在内存中计算状态，不读写存储
		status, _ := model.NextStatus(model.StatusPending, model.EventVerificationFailed)
		s.logger.Warn("payment signature mismatch",
			"event", "signature_invalid",
			"user_id", in.UserID,
			"order_id", in.OrderID,
			"payment_id", in.PaymentID,
			"status", status,
		)
		return nil, false, ErrSignatureInvalid
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, "subscription:"+in.UserID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, fmt.Errorf("%w: %w", ErrStorage, ctx.Err())
			}
			// 存储层的唯一约束仍然保证正确性
			s.logger.Warn("subscription lock unavailable, continuing", "user_id", in.UserID, "error", err)
		} else {
			defer unlock()
		}
	}

	current, err := s.store.Get(ctx, in.UserID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if current.AppliedBy(in.OrderID, in.PaymentID) {
		return s.replayed(current), false, nil
	}

	now := s.now().UTC().Truncate(time.Second)
	next, err := model.NextStatus(current.EffectiveStatus(now), model.EventPaymentVerified)
	if err != nil {
		return nil, false, err
	}
	end := model.AddMonthsClamped(now, 1)

	sub := &model.Subscription{
		PlanID:    in.PlanID,
		Status:    next,
		StartDate: &now,
		EndDate:   &end,
		PaymentID: in.PaymentID,
		OrderID:   in.OrderID,
	}

	stored, applied, err := s.store.Activate(ctx, in.UserID, sub)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentClaimed) {
			s.logger.Warn("payment replayed by another account",
				"event", "payment_claimed",
				"user_id", in.UserID,
				"order_id", in.OrderID,
				"payment_id", in.PaymentID,
			)
			return nil, false, ErrPaymentClaimed
		}
		return nil, false, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !applied {
		return s.replayed(stored), false, nil
	}

	s.logger.Info("subscription activated",
		"user_id", in.UserID,
		"plan_id", stored.PlanID,
		"order_id", in.OrderID,
		"end_date", end,
	)
	s.publishActivated(ctx, in.UserID, stored)

	return stored, true, nil
}

// replayed 重放时返回存储状态的副本，过期按读取时间解析
func (s *SubscriptionService) replayed(stored *model.Subscription) *model.Subscription {
	if stored == nil {
		return nil
	}
	view := *stored
	view.Status = stored.EffectiveStatus(s.now())
	return &view
}

// Get 读取订阅，过期在读取时解析，不回写
func (s *SubscriptionService) Get(ctx context.Context, userID string) (*dto.SubscriptionView, error) {
	if userID == "" {
		return nil, ErrAuth
	}

	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	now := s.now()
	view := &dto.SubscriptionView{
		PlanID: model.PlanFree,
		Status: string(sub.EffectiveStatus(now)),
		Valid:  sub.IsValid(now),
	}
	if sub != nil {
		if sub.PlanID != "" {
			view.PlanID = sub.PlanID
		}
		view.StartDate = sub.StartDate
		view.EndDate = sub.EndDate
	}
	return view, nil
}

func (s *SubscriptionService) publishActivated(ctx context.Context, userID string, sub *model.Subscription) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishActivated(ctx, &pubsub.SubscriptionEvent{
		UserID:    userID,
		PlanID:    sub.PlanID,
		Status:    string(sub.Status),
		EndDate:   sub.EndDate,
		OrderID:   sub.OrderID,
		PaymentID: sub.PaymentID,
	})
	if err != nil {
		s.logger.Warn("publish subscription event failed", "user_id", userID, "error", err)
	}
}

func validateActivateInput(in ActivateInput) error {
	switch {
	case in.UserID == "":
		return ErrAuth
	case in.OrderID == "":
		return fmt.Errorf("%w: razorpay_order_id is required", ErrValidation)
	case in.PaymentID == "":
		return fmt.Errorf("%w: razorpay_payment_id is required", ErrValidation)
	case in.Signature == "":
		return fmt.Errorf("%w: razorpay_signature is required", ErrValidation)
	case in.PlanID == "":
		return fmt.Errorf("%w: planId is required", ErrValidation)
	case !model.IsKnownPlan(in.PlanID):
		return fmt.Errorf("%w: unknown plan %q", ErrValidation, in.PlanID)
	}
	return nil
}
