package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/chatpay_server/internal/model"
)

// TestUser 创建测试用户，默认没有订阅
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	email := fmt.Sprintf("test_%d@example.com", time.Now().UnixNano())
	user := &model.User{
		ID:          fmt.Sprintf("uid_%d", time.Now().UnixNano()),
		Email:       &email,
		DisplayName: "Test User",
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithID 设置用户 ID
func WithID(id string) func(*model.User) {
	return func(u *model.User) {
		u.ID = id
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithSubscription 设置订阅，start 起一个自然月有效
func WithSubscription(planID string, status model.SubscriptionStatus, start time.Time) func(*model.User) {
	return func(u *model.User) {
		start = start.UTC().Truncate(time.Second)
		end := model.AddMonthsClamped(start, 1)
		u.Subscription = model.Subscription{
			PlanID:    planID,
			Status:    status,
			StartDate: &start,
			EndDate:   &end,
			OrderID:   fmt.Sprintf("order_fixture_%d", start.UnixNano()),
			PaymentID: fmt.Sprintf("pay_fixture_%d", start.UnixNano()),
		}
	}
}

// WithExpiredSubscription 设置一个已过期但状态仍为 active 的订阅
func WithExpiredSubscription(planID string) func(*model.User) {
	return WithSubscription(planID, model.StatusActive, time.Now().AddDate(0, -2, 0))
}

// TestActivation 写入一条支付生效记录
func TestActivation(t *testing.T, db *gorm.DB, userID, orderID, paymentID, planID string) *model.SubscriptionActivation {
	t.Helper()

	activation := &model.SubscriptionActivation{
		UserID:      userID,
		OrderID:     orderID,
		PaymentID:   paymentID,
		PlanID:      planID,
		ActivatedAt: time.Now().UTC(),
	}

	if err := db.Create(activation).Error; err != nil {
		t.Fatalf("Failed to create test activation: %v", err)
	}

	return activation
}
