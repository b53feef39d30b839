package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/qrcode_go_server/config"
	"github.com/qs3c/qrcode_go_server/internal/api/handler"
	"github.com/qs3c/qrcode_go_server/internal/api/middleware"
	"github.com/qs3c/qrcode_go_server/internal/pkg/metrics"
	"github.com/qs3c/qrcode_go_server/internal/service"
)

type Router struct {
	authHandler         *handler.AuthHandler
	userHandler         *handler.UserHandler
	subscriptionHandler *handler.SubscriptionHandler
	qrcodeHandler       *handler.QRCodeHandler
	adminHandler        *handler.AdminHandler
	healthHandler       *handler.HealthHandler
	authService         *service.AuthService
	subs                *service.SubscriptionService
	metrics             *metrics.Metrics
	cfg                 *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	qrcodeHandler *handler.QRCodeHandler,
	adminHandler *handler.AdminHandler,
	healthHandler *handler.HealthHandler,
	authService *service.AuthService,
	subs *service.SubscriptionService,
	m *metrics.Metrics,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:         authHandler,
		userHandler:         userHandler,
		subscriptionHandler: subscriptionHandler,
		qrcodeHandler:       qrcodeHandler,
		adminHandler:        adminHandler,
		healthHandler:       healthHandler,
		authService:         authService,
		subs:                subs,
		metrics:             m,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger(r.metrics))
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/healthz", r.healthHandler.Healthz)
	if r.metrics != nil {
		engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}

	// 扫码访问
	engine.GET("/qr/:public_id", r.qrcodeHandler.PublicView)
	engine.GET("/qr/:public_id/preview", r.qrcodeHandler.Preview)

	api := engine.Group("/api/v1")
	{
		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
		}

		// 公开接口 - 套餐
		api.GET("/plans", r.subscriptionHandler.Plans)

		// 需要认证的接口，先处理过期套餐
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		authenticated.Use(middleware.Reconcile(r.authService, r.subs))
		{
			// 用户
			user := authenticated.Group("/user")
			{
				user.GET("/profile", r.userHandler.GetProfile)
				user.PUT("/profile", r.userHandler.UpdateProfile)
			}

			// 订阅
			subscription := authenticated.Group("/subscription")
			{
				subscription.GET("", r.subscriptionHandler.Status)
				subscription.POST("/promo", r.subscriptionHandler.ApplyPromo)
				subscription.POST("/checkout", r.subscriptionHandler.Checkout)
				subscription.POST("/checkout/complete", r.subscriptionHandler.CompleteCheckout)
				subscription.POST("/cancel", r.subscriptionHandler.Cancel)
			}

			// 二维码
			qrcodes := authenticated.Group("/qrcodes")
			{
				qrcodes.POST("", r.qrcodeHandler.Create)
				qrcodes.GET("", r.qrcodeHandler.List)
				qrcodes.GET("/:public_id/download/:format", r.qrcodeHandler.Download)
				qrcodes.DELETE("/:public_id", r.qrcodeHandler.Delete)
			}

			// 管理后台
			admin := authenticated.Group("/admin")
			admin.Use(middleware.AdminOnly())
			{
				admin.GET("/users", r.adminHandler.ListUsers)
				admin.PUT("/users/:id", r.adminHandler.UpdateUser)
				admin.DELETE("/users/:id", r.adminHandler.DeleteUser)
				admin.GET("/users/:id/qrcodes", r.adminHandler.ListUserCodes)
				admin.DELETE("/qrcodes/:public_id", r.adminHandler.DeleteCode)
				admin.GET("/stats", r.adminHandler.Stats)
				admin.GET("/permissions", r.adminHandler.Permissions)
				admin.POST("/sweep", r.adminHandler.Sweep)
			}
		}
	}

	return engine
}
