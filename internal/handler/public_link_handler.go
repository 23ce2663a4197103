package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xavierau/event-platform-sub006/internal/middleware"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/service"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "session_id"
)

// PublicLinkHandler 顧客端的連結頁面、報價與購買，登入非必要
type PublicLinkHandler struct {
	linkService     service.PurchaseLinkService
	purchaseService service.PurchaseService
}

func NewPublicLinkHandler(linkService service.PurchaseLinkService, purchaseService service.PurchaseService) *PublicLinkHandler {
	return &PublicLinkHandler{linkService: linkService, purchaseService: purchaseService}
}

func (h *PublicLinkHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("links/:code", h.ShowLink)
	router.POST("links/:code/quote", h.QuoteLink)
	router.POST("links/:code/purchase", h.PurchaseLink)
}

type quoteRequest struct {
	Items []model.PurchaseItem `json:"items"`
}

func (h *PublicLinkHandler) ShowLink(c *gin.Context) {
	input := model.AccessInput{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
		SessionID: sessionID(c),
	}
	if userID, ok := middleware.UserID(c); ok {
		input.UserID = &userID
	}

	resp, err := h.linkService.Show(c.Request.Context(), c.Param("code"), input)
	if err != nil {
		handleError(c, err, "ShowLink")
		return
	}

	handleSuccess(c, resp, http.StatusOK)
}

func (h *PublicLinkHandler) QuoteLink(c *gin.Context) {
	var req quoteRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	totals, err := h.purchaseService.Quote(c.Request.Context(), c.Param("code"), req.Items)
	if err != nil {
		handleError(c, err, "QuoteLink")
		return
	}

	handleSuccess(c, totals, http.StatusOK)
}

func (h *PublicLinkHandler) PurchaseLink(c *gin.Context) {
	var req model.PurchaseRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	req.LinkCode = c.Param("code")
	if userID, ok := middleware.UserID(c); ok {
		req.UserID = &userID
	}

	result, err := h.purchaseService.Process(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, "PurchaseLink")
		return
	}

	handleSuccess(c, result, http.StatusCreated)
}

func sessionID(c *gin.Context) string {
	if id := c.GetHeader(sessionHeader); id != "" {
		return id
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie
	}
	return ""
}
