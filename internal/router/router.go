package router

import (
	"github.com/gin-gonic/gin"
	"github.com/xavierau/event-platform-sub006/config"
	"github.com/xavierau/event-platform-sub006/internal/handler"
	"github.com/xavierau/event-platform-sub006/internal/middleware"
)

type Handlers struct {
	Holds        *handler.HoldHandler
	Links        *handler.PurchaseLinkHandler
	Public       *handler.PublicLinkHandler
	Availability *handler.AvailabilityHandler
	Health       *handler.HealthHandler
}

// New 建立 gin engine：/healthz 不經過驗證，/api/v1 下的管理路由需要 admin
func New(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", h.Health.Healthz)

	api := r.Group("/api/v1")
	api.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	api.Use(middleware.Authenticate(cfg.Auth.JWTSecret))

	admin := api.Group("", middleware.RequireRole(cfg.Auth.AdminRole))
	h.Holds.RegisterRoutes(admin)
	h.Links.RegisterRoutes(admin)

	h.Public.RegisterRoutes(api)
	h.Availability.RegisterRoutes(api)

	return r
}
