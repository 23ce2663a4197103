package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xavierau/event-platform-sub006/internal/clock"
	"github.com/xavierau/event-platform-sub006/internal/middleware"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/service"
)

type PurchaseLinkHandler struct {
	service service.PurchaseLinkService
	clock   clock.Clock
	baseURL string
}

func NewPurchaseLinkHandler(service service.PurchaseLinkService, clk clock.Clock, baseURL string) *PurchaseLinkHandler {
	return &PurchaseLinkHandler{service: service, clock: clk, baseURL: baseURL}
}

func (h *PurchaseLinkHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("purchase-links", h.CreateLink)
	router.GET("purchase-links/:id", h.GetLink)
	router.PUT("purchase-links/:id", h.UpdateLink)
	router.POST("purchase-links/:id/revoke", h.RevokeLink)
	router.GET("purchase-links/:id/analytics", h.GetAnalytics)
}

func (h *PurchaseLinkHandler) CreateLink(c *gin.Context) {
	var req model.CreatePurchaseLinkRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	userID, _ := middleware.UserID(c)
	link, err := h.service.Create(c.Request.Context(), req, userID)
	if err != nil {
		handleError(c, err, "CreateLink")
		return
	}

	handleSuccess(c, model.NewPurchaseLinkResponse(link, h.baseURL, h.clock.Now()), http.StatusCreated)
}

func (h *PurchaseLinkHandler) GetLink(c *gin.Context) {
	id, err := paramInt(c, "id")
	if err != nil {
		handleError(c, err, "GetLink")
		return
	}

	link, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetLink")
		return
	}

	handleSuccess(c, model.NewPurchaseLinkResponse(link, h.baseURL, h.clock.Now()), http.StatusOK)
}

func (h *PurchaseLinkHandler) UpdateLink(c *gin.Context) {
	id, err := paramInt(c, "id")
	if err != nil {
		handleError(c, err, "UpdateLink")
		return
	}

	var req model.UpdatePurchaseLinkRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	link, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		handleError(c, err, "UpdateLink")
		return
	}

	handleSuccess(c, model.NewPurchaseLinkResponse(link, h.baseURL, h.clock.Now()), http.StatusOK)
}

func (h *PurchaseLinkHandler) RevokeLink(c *gin.Context) {
	id, err := paramInt(c, "id")
	if err != nil {
		handleError(c, err, "RevokeLink")
		return
	}

	userID, _ := middleware.UserID(c)
	link, err := h.service.Revoke(c.Request.Context(), id, userID)
	if err != nil {
		handleError(c, err, "RevokeLink")
		return
	}

	handleSuccess(c, model.NewPurchaseLinkResponse(link, h.baseURL, h.clock.Now()), http.StatusOK)
}

func (h *PurchaseLinkHandler) GetAnalytics(c *gin.Context) {
	id, err := paramInt(c, "id")
	if err != nil {
		handleError(c, err, "GetAnalytics")
		return
	}

	analytics, err := h.service.Analytics(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetAnalytics")
		return
	}

	handleSuccess(c, analytics, http.StatusOK)
}
