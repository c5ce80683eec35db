package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/qs3c/chatpay_server/internal/model"
)

const activationIndexName = "uniq_activation_order_payment"

// userDocument users 集合中的用户文档，只读写订阅相关字段
type userDocument struct {
	ID           string               `bson:"_id"`
	Subscription *model.Subscription  `bson:"subscription,omitempty"`
	Activations  []activationDocument `bson:"activations,omitempty"`
}

type activationDocument struct {
	OrderID     string    `bson:"orderId"`
	PaymentID   string    `bson:"paymentId"`
	PlanID      string    `bson:"planId"`
	ActivatedAt time.Time `bson:"activatedAt"`
}

// MongoSubscriptionRepository 文档库实现，订阅作为用户文档的子文档
type MongoSubscriptionRepository struct {
	coll *mongo.Collection
}

func NewMongoSubscriptionRepository(coll *mongo.Collection) *MongoSubscriptionRepository {
	return &MongoSubscriptionRepository{coll: coll}
}

// EnsureIndexes 创建支付对的唯一索引，启动时调用一次
func (r *MongoSubscriptionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "activations.orderId", Value: 1},
			{Key: "activations.paymentId", Value: 1},
		},
		Options: options.Index().
			SetName(activationIndexName).
			SetUnique(true).
			SetPartialFilterExpression(bson.D{
				{Key: "activations.orderId", Value: bson.D{{Key: "$exists", Value: true}}},
			}),
	})
	return err
}

func (r *MongoSubscriptionRepository) Get(ctx context.Context, userID string) (*model.Subscription, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: userID}},
		options.FindOne().SetProjection(bson.D{{Key: "subscription", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	if doc.Subscription == nil || doc.Subscription.Status == "" {
		return nil, nil
	}
	return doc.Subscription, nil
}

// Activate 条件 upsert：仅当用户文档中不存在该支付对时写入
func (r *MongoSubscriptionRepository) Activate(ctx context.Context, userID string, sub *model.Subscription) (*model.Subscription, bool, error) {
	activatedAt := time.Now().UTC()
	if sub.StartDate != nil {
		activatedAt = *sub.StartDate
	}

	filter := activationFilter(userID, sub.OrderID, sub.PaymentID)
	update := activationUpdate(sub, activationDocument{
		OrderID:     sub.OrderID,
		PaymentID:   sub.PaymentID,
		PlanID:      sub.PlanID,
		ActivatedAt: activatedAt,
	})

	_, err := r.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err == nil {
		current, err := r.Get(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return current, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, err
	}

	// 重复键：支付对已记录，找出持有者
	var owner userDocument
	err = r.coll.FindOne(ctx, pairOwnerFilter(sub.OrderID, sub.PaymentID),
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}}),
	).Decode(&owner)
	if err != nil {
		return nil, false, err
	}
	if owner.ID != userID {
		return nil, false, ErrPaymentClaimed
	}

	current, err := r.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func activationFilter(userID, orderID, paymentID string) bson.D {
	return bson.D{
		{Key: "_id", Value: userID},
		{Key: "activations", Value: bson.D{
			{Key: "$not", Value: bson.D{
				{Key: "$elemMatch", Value: bson.D{
					{Key: "orderId", Value: orderID},
					{Key: "paymentId", Value: paymentID},
				}},
			}},
		}},
	}
}

func activationUpdate(sub *model.Subscription, activation activationDocument) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.D{{Key: "subscription", Value: sub}}},
		{Key: "$push", Value: bson.D{{Key: "activations", Value: activation}}},
	}
}

func pairOwnerFilter(orderID, paymentID string) bson.D {
	return bson.D{
		{Key: "activations", Value: bson.D{
			{Key: "$elemMatch", Value: bson.D{
				{Key: "orderId", Value: orderID},
				{Key: "paymentId", Value: paymentID},
			}},
		}},
	}
}

// ListActivations 按生效时间倒序返回用户的支付记录
func (r *MongoSubscriptionRepository) ListActivations(ctx context.Context, userID string) ([]model.SubscriptionActivation, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: userID}},
		options.FindOne().SetProjection(bson.D{{Key: "activations", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return toActivations(userID, doc.Activations), nil
}

func toActivations(userID string, docs []activationDocument) []model.SubscriptionActivation {
	out := make([]model.SubscriptionActivation, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		out = append(out, model.SubscriptionActivation{
			UserID:      userID,
			OrderID:     docs[i].OrderID,
			PaymentID:   docs[i].PaymentID,
			PlanID:      docs[i].PlanID,
			ActivatedAt: docs[i].ActivatedAt,
		})
	}
	return out
}
