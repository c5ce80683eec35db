package model

import (
	"errors"
	"fmt"
	"time"
)

type SubscriptionStatus string

const (
	StatusNone    SubscriptionStatus = "none"
	StatusPending SubscriptionStatus = "pending"
	StatusActive  SubscriptionStatus = "active"
	StatusExpired SubscriptionStatus = "expired"
	StatusInvalid SubscriptionStatus = "invalid"
)

// SubscriptionEvent 驱动订阅状态变化的事件
type SubscriptionEvent string

const (
	EventOrderCreated       SubscriptionEvent = "order_created"
	EventPaymentVerified    SubscriptionEvent = "payment_verified"
	EventVerificationFailed SubscriptionEvent = "verification_failed"
	EventPeriodElapsed      SubscriptionEvent = "period_elapsed"
)

var ErrInvalidTransition = errors.New("invalid subscription transition")

type transitionKey struct {
	from  SubscriptionStatus
	event SubscriptionEvent
}

var transitions = map[transitionKey]SubscriptionStatus{
	{StatusNone, EventOrderCreated}:       StatusPending,
	{StatusNone, EventPaymentVerified}:    StatusActive,
	{StatusPending, EventPaymentVerified}: StatusActive,
	{StatusActive, EventPaymentVerified}:  StatusActive,
	{StatusActive, EventPeriodElapsed}:    StatusExpired,
	{StatusExpired, EventOrderCreated}:    StatusPending,
	{StatusExpired, EventPaymentVerified}: StatusActive,
	{StatusInvalid, EventOrderCreated}:    StatusPending,
	{StatusInvalid, EventPaymentVerified}: StatusActive,
}

// NextStatus 根据当前状态和事件计算下一个状态
// verification_failed 可以从任意状态进入 invalid
func NextStatus(from SubscriptionStatus, event SubscriptionEvent) (SubscriptionStatus, error) {
	if from == "" {
		from = StatusNone
	}
	if event == EventVerificationFailed {
		return StatusInvalid, nil
	}
	to, ok := transitions[transitionKey{from, event}]
	if !ok {
		return from, fmt.Errorf("%w: %s --%s-->", ErrInvalidTransition, from, event)
	}
	return to, nil
}

// Subscription 用户订阅，内嵌在用户记录中
type Subscription struct {
	PlanID    string             `gorm:"size:32" json:"planId" bson:"planId"`
	Status    SubscriptionStatus `gorm:"size:16" json:"status" bson:"status"`
	StartDate *time.Time         `json:"startDate,omitempty" bson:"startDate,omitempty"`
	EndDate   *time.Time         `json:"endDate,omitempty" bson:"endDate,omitempty"`
	PaymentID string             `gorm:"size:64" json:"paymentId,omitempty" bson:"paymentId,omitempty"`
	OrderID   string             `gorm:"size:64" json:"orderId,omitempty" bson:"orderId,omitempty"`
}

// EffectiveStatus 读取时解析过期：active 但已过 endDate 视为 expired
func (s *Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if s == nil || s.Status == "" {
		return StatusNone
	}
	if s.Status == StatusActive {
		if s.EndDate == nil || now.After(*s.EndDate) {
			return StatusExpired
		}
	}
	return s.Status
}

// IsValid 当前是否处于有效订阅期
func (s *Subscription) IsValid(now time.Time) bool {
	return s.EffectiveStatus(now) == StatusActive
}

// AppliedBy 是否已由该支付事件生效
func (s *Subscription) AppliedBy(orderID, paymentID string) bool {
	return s != nil && s.OrderID == orderID && s.PaymentID == paymentID
}

// SubscriptionActivation 记录每一次生效的 (orderId, paymentId)，防止重放
type SubscriptionActivation struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"size:128;not null;index" json:"user_id"`
	OrderID     string    `gorm:"size:64;not null;uniqueIndex:idx_activation_order_payment" json:"order_id"`
	PaymentID   string    `gorm:"size:64;not null;uniqueIndex:idx_activation_order_payment" json:"payment_id"`
	PlanID      string    `gorm:"size:32;not null" json:"plan_id"`
	ActivatedAt time.Time `gorm:"not null" json:"activated_at"`
}

func (SubscriptionActivation) TableName() string {
	return "subscription_activations"
}

// AddMonthsClamped 按自然月加 n 个月，日期超出目标月天数时取该月最后一天
// 例如 1 月 31 日加一个月得到 2 月 28/29 日
func AddMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	first := time.Date(year, month+time.Month(months), 1, hour, minute, sec, t.Nanosecond(), t.Location())
	lastDay := daysIn(first.Year(), first.Month(), t.Location())
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
