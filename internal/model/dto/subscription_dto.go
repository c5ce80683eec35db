package dto

import "time"

// SubscriptionView 订阅详情，status 为读取时解析后的有效状态
type SubscriptionView struct {
	PlanID    string     `json:"planId"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Valid     bool       `json:"valid"`
}

// QuotaInfo token 配额信息
type QuotaInfo struct {
	PlanID     string `json:"planId"`
	Status     string `json:"status"`
	TokenLimit int    `json:"tokenLimit"`
}
