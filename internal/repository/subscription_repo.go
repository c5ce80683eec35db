package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/chatpay_server/internal/model"
)

// ErrPaymentClaimed 该 (orderId, paymentId) 已为其他用户生效
var ErrPaymentClaimed = errors.New("payment already applied to another user")

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Get 用户不存在或从未订阅时返回 nil, nil
func (r *SubscriptionRepository) Get(ctx context.Context, userID string) (*model.Subscription, error) {
	return loadSubscription(r.db.WithContext(ctx), userID)
}

// Activate 在一个事务内记录支付对并写入订阅字段
// 支付对已存在时不做任何修改，返回 applied=false 和当前状态
func (r *SubscriptionRepository) Activate(ctx context.Context, userID string, sub *model.Subscription) (*model.Subscription, bool, error) {
	var (
		current *model.Subscription
		applied bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 用户记录不存在时创建，已存在则保持原样
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.User{ID: userID}).Error; err != nil {
			return err
		}

		activatedAt := time.Now().UTC()
		if sub.StartDate != nil {
			activatedAt = *sub.StartDate
		}
		activation := &model.SubscriptionActivation{
			UserID:      userID,
			OrderID:     sub.OrderID,
			PaymentID:   sub.PaymentID,
			PlanID:      sub.PlanID,
			ActivatedAt: activatedAt,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(activation)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			var existing model.SubscriptionActivation
			if err := tx.Where("order_id = ? AND payment_id = ?", sub.OrderID, sub.PaymentID).
				First(&existing).Error; err != nil {
				return err
			}
			if existing.UserID != userID {
				return ErrPaymentClaimed
			}

			cur, err := loadSubscription(tx, userID)
			if err != nil {
				return err
			}
			current = cur
			return nil
		}

		fields := map[string]interface{}{
			"subscription_plan_id":    sub.PlanID,
			"subscription_status":     sub.Status,
			"subscription_start_date": sub.StartDate,
			"subscription_end_date":   sub.EndDate,
			"subscription_payment_id": sub.PaymentID,
			"subscription_order_id":   sub.OrderID,
		}
		if err := tx.Model(&model.User{}).Where("id = ?", userID).Updates(fields).Error; err != nil {
			return err
		}

		cur, err := loadSubscription(tx, userID)
		if err != nil {
			return err
		}
		current = cur
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return current, applied, nil
}

// ListActivations 按生效时间倒序返回用户的支付记录
func (r *SubscriptionRepository) ListActivations(ctx context.Context, userID string) ([]model.SubscriptionActivation, error) {
	var activations []model.SubscriptionActivation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("activated_at DESC, id DESC").
		Find(&activations).Error
	if err != nil {
		return nil, err
	}
	return activations, nil
}

func loadSubscription(db *gorm.DB, userID string) (*model.Subscription, error) {
	var user model.User
	err := db.Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if user.Subscription.Status == "" {
		return nil, nil
	}
	sub := user.Subscription
	return &sub, nil
}
