package dto

import "time"

// CreateOrderRequest 创建支付订单请求
type CreateOrderRequest struct {
	PlanID  string  `json:"planId" binding:"required,max=32"`
	Amount  float64 `json:"amount" binding:"required,gt=0"`
	IDToken string  `json:"idToken" binding:"required"`
}

// CreateOrderResponse 创建支付订单响应，amount 为最小货币单位
type CreateOrderResponse struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// VerifyPaymentRequest 支付结果校验请求，字段名与支付网关回调一致
type VerifyPaymentRequest struct {
	PaymentID string `json:"razorpay_payment_id" binding:"required,max=64"`
	OrderID   string `json:"razorpay_order_id" binding:"required,max=64"`
	Signature string `json:"razorpay_signature" binding:"required,max=256"`
	PlanID    string `json:"planId" binding:"required,max=32"`
	IDToken   string `json:"idToken" binding:"required"`
}

// VerifyPaymentResponse 支付校验成功响应
type VerifyPaymentResponse struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	Subscription *SubscriptionInfo `json:"subscription"`
}

// SubscriptionInfo 返回给前端的订阅摘要
type SubscriptionInfo struct {
	PlanID  string     `json:"planId"`
	Status  string     `json:"status"`
	EndDate *time.Time `json:"endDate"`
}
