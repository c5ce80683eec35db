package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/chatpay_server/internal/model"
	"github.com/qs3c/chatpay_server/internal/pkg/response"
)

type PlanHandler struct{}

func NewPlanHandler() *PlanHandler {
	return &PlanHandler{}
}

// List 获取套餐列表
// GET /api/v1/plans
func (h *PlanHandler) List(c *gin.Context) {
	response.Success(c, gin.H{
		"plans": model.Plans(),
	})
}
