package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/chatpay_server/config"
	"github.com/qs3c/chatpay_server/internal/api/handler"
	"github.com/qs3c/chatpay_server/internal/api/middleware"
	"github.com/qs3c/chatpay_server/internal/pkg/identity"
	"github.com/qs3c/chatpay_server/internal/service"
)

type Router struct {
	paymentHandler      *handler.PaymentHandler
	subscriptionHandler *handler.SubscriptionHandler
	quotaHandler        *handler.QuotaHandler
	planHandler         *handler.PlanHandler
	healthHandler       *handler.HealthHandler
	quotaService        *service.QuotaService
	verifier            identity.Verifier
	logger              *slog.Logger
	cfg                 *config.Config
}

func NewRouter(
	paymentHandler *handler.PaymentHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	quotaHandler *handler.QuotaHandler,
	planHandler *handler.PlanHandler,
	healthHandler *handler.HealthHandler,
	quotaService *service.QuotaService,
	verifier identity.Verifier,
	logger *slog.Logger,
	cfg *config.Config,
) *Router {
	return &Router{
		paymentHandler:      paymentHandler,
		subscriptionHandler: subscriptionHandler,
		quotaHandler:        quotaHandler,
		planHandler:         planHandler,
		healthHandler:       healthHandler,
		quotaService:        quotaService,
		verifier:            verifier,
		logger:              logger,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(r.logger))
	engine.Use(middleware.CORS(r.cfg.CORS))
	engine.Use(middleware.Timeout(r.cfg.Server.RequestTimeout))

	engine.GET("/healthz", r.healthHandler.Check)

	api := engine.Group("/api/v1")
	{
		// 公开接口 - 套餐
		api.GET("/plans", r.planHandler.List)

		// 支付，idToken 在请求体中
		payments := api.Group("/payments")
		{
			payments.POST("/create-order", r.paymentHandler.CreateOrder)
			payments.POST("/verify", r.paymentHandler.Verify)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.verifier))
		{
			authenticated.GET("/subscription", r.subscriptionHandler.Get)

			user := authenticated.Group("/user")
			{
				user.GET("/quota", middleware.TokenBudget(r.quotaService), r.quotaHandler.GetQuota)
			}
		}
	}

	return engine
}
