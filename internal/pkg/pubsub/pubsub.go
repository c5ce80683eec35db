package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelSubscriptionEvents = "subscription_events"
)

// 事件类型
const (
	EventSubscriptionActivated = "subscription.activated"
)

// SubscriptionEvent 订阅变更事件
type SubscriptionEvent struct {
	Type       string     `json:"type"`
	UserID     string     `json:"user_id"`
	PlanID     string     `json:"plan_id"`
	Status     string     `json:"status"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	OrderID    string     `json:"order_id,omitempty"`
	PaymentID  string     `json:"payment_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishActivated 发布订阅激活事件
func (p *Publisher) PublishActivated(ctx context.Context, evt *SubscriptionEvent) error {
	evt.Type = EventSubscriptionActivated
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription event: %w", err)
	}

	return p.client.Publish(ctx, ChannelSubscriptionEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅事件，直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*SubscriptionEvent)) error {
	pubsub := s.client.Subscribe(ctx, ChannelSubscriptionEvents)
	defer pubsub.Close()

	// 确认订阅已建立
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", ChannelSubscriptionEvents, err)
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var evt SubscriptionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue // 忽略解析错误
			}

			handler(&evt)
		}
	}
}
