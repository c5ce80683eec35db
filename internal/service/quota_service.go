package service

import (
	"context"
	"fmt"
	"time"

	"github.com/qs3c/chatpay_server/internal/model"
	"github.com/qs3c/chatpay_server/internal/model/dto"
)

type QuotaService struct {
	store SubscriptionStore
	now   func() time.Time
}

func NewQuotaService(store SubscriptionStore) *QuotaService {
	return &QuotaService{
		store: store,
		now:   time.Now,
	}
}

// QuotaFor 套餐对应的 token 配额
func (s *QuotaService) QuotaFor(planID string) int {
	return model.TokenLimit(planID)
}

// GetBudget 获取用户当前可用的 token 配额
// 订阅无效（过期、未激活）时按 free 计算
func (s *QuotaService) GetBudget(ctx context.Context, userID string) (*dto.QuotaInfo, error) {
	if userID == "" {
		return nil, ErrAuth
	}

	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	now := s.now()
	planID := model.PlanFree
	if sub.IsValid(now) {
		planID = sub.PlanID
	}

	return &dto.QuotaInfo{
		PlanID:     planID,
		Status:     string(sub.EffectiveStatus(now)),
		TokenLimit: s.QuotaFor(planID),
	}, nil
}
