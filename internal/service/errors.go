package service

import "errors"

// 服务层错误分类，handler 用 errors.Is 映射到 HTTP 状态码
var (
	ErrValidation       = errors.New("invalid request")
	ErrAuth             = errors.New("authentication failed")
	ErrSignatureInvalid = errors.New("payment signature verification failed")
	ErrPaymentClaimed   = errors.New("payment already applied to another account")
	ErrGateway          = errors.New("payment gateway error")
	ErrStorage          = errors.New("storage error")
)
