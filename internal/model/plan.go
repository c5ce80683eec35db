package model

import "sort"

const (
	PlanFree    = "free"
	PlanPremium = "premium"
	PlanPro     = "pro"
)

// Plan 套餐及其 token 配额
type Plan struct {
	ID         string `json:"id"`
	TokenLimit int    `json:"tokenLimit"`
}

var planTokenLimits = map[string]int{
	PlanFree:    1000,
	PlanPremium: 10000,
	PlanPro:     50000,
}

// TokenLimit 返回套餐的 token 配额，未知或为空时按 free 处理
func TokenLimit(planID string) int {
	if limit, ok := planTokenLimits[planID]; ok {
		return limit
	}
	return planTokenLimits[PlanFree]
}

func IsKnownPlan(planID string) bool {
	_, ok := planTokenLimits[planID]
	return ok
}

// Plans 按配额从低到高返回所有套餐
func Plans() []Plan {
	plans := make([]Plan, 0, len(planTokenLimits))
	for id, limit := range planTokenLimits {
		plans = append(plans, Plan{ID: id, TokenLimit: limit})
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].TokenLimit < plans[j].TokenLimit
	})
	return plans
}
