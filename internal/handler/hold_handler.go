package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xavierau/event-platform-sub006/internal/clock"
	"github.com/xavierau/event-platform-sub006/internal/middleware"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/service"
	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
)

type HoldHandler struct {
	service     service.TicketHoldService
	linkService service.PurchaseLinkService
	clock       clock.Clock
	baseURL     string
}

func NewHoldHandler(service service.TicketHoldService, linkService service.PurchaseLinkService, clk clock.Clock, baseURL string) *HoldHandler {
	return &HoldHandler{service: service, linkService: linkService, clock: clk, baseURL: baseURL}
}

// RegisterRoutes 掛在需要 admin 權限的 group 底下
func (h *HoldHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("ticket-holds", h.CreateHold)
	router.GET("ticket-holds", h.ListHolds)
	router.GET("ticket-holds/:uuid", h.GetHold)
	router.PUT("ticket-holds/:uuid", h.UpdateHold)
	router.POST("ticket-holds/:uuid/release", h.ReleaseHold)
	router.GET("ticket-holds/:uuid/purchase-links", h.ListHoldLinks)
}

type listHoldsQuery struct {
	EventOccurrenceID *int    `form:"event_occurrence_id"`
	OrganizerID       *int    `form:"organizer_id"`
	Status            *string `form:"status"`
	Limit             int     `form:"limit"`
	Offset            int     `form:"offset"`
}

func (h *HoldHandler) CreateHold(c *gin.Context) {
	var req model.CreateHoldRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	userID, _ := middleware.UserID(c)
	hold, err := h.service.Create(c.Request.Context(), req, userID)
	if err != nil {
		handleError(c, err, "CreateHold")
		return
	}

	handleSuccess(c, model.NewHoldResponse(hold, h.clock.Now()), http.StatusCreated)
}

func (h *HoldHandler) ListHolds(c *gin.Context) {
	var query listHoldsQuery
	if err := BindQuery(c, &query); err != nil {
		return
	}

	filter := model.HoldFilter{
		EventOccurrenceID: query.EventOccurrenceID,
		OrganizerID:       query.OrganizerID,
		Limit:             query.Limit,
		Offset:            query.Offset,
	}
	if query.Status != nil {
		status := model.HoldStatus(*query.Status)
		if !status.IsValid() {
			handleError(c, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidInput, *query.Status), "ListHolds")
			return
		}
		filter.Status = &status
	}

	holds, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err, "ListHolds")
		return
	}

	now := h.clock.Now()
	responses := make([]model.HoldResponse, 0, len(holds))
	for _, hold := range holds {
		responses = append(responses, model.NewHoldResponse(hold, now))
	}

	handleSuccess(c, responses, http.StatusOK)
}

func (h *HoldHandler) GetHold(c *gin.Context) {
	id, err := paramUUID(c, "uuid")
	if err != nil {
		handleError(c, err, "GetHold")
		return
	}

	hold, err := h.service.GetByUUID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetHold")
		return
	}

	handleSuccess(c, model.NewHoldResponse(hold, h.clock.Now()), http.StatusOK)
}

func (h *HoldHandler) UpdateHold(c *gin.Context) {
	id, err := paramUUID(c, "uuid")
	if err != nil {
		handleError(c, err, "UpdateHold")
		return
	}

	var req model.UpdateHoldRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	hold, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		handleError(c, err, "UpdateHold")
		return
	}

	handleSuccess(c, model.NewHoldResponse(hold, h.clock.Now()), http.StatusOK)
}

func (h *HoldHandler) ReleaseHold(c *gin.Context) {
	id, err := paramUUID(c, "uuid")
	if err != nil {
		handleError(c, err, "ReleaseHold")
		return
	}

	userID, _ := middleware.UserID(c)
	hold, err := h.service.Release(c.Request.Context(), id, userID)
	if err != nil {
		handleError(c, err, "ReleaseHold")
		return
	}

	handleSuccess(c, model.NewHoldResponse(hold, h.clock.Now()), http.StatusOK)
}

func (h *HoldHandler) ListHoldLinks(c *gin.Context) {
	id, err := paramUUID(c, "uuid")
	if err != nil {
		handleError(c, err, "ListHoldLinks")
		return
	}

	links, err := h.linkService.ListByHold(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "ListHoldLinks")
		return
	}

	now := h.clock.Now()
	responses := make([]model.PurchaseLinkResponse, 0, len(links))
	for _, link := range links {
		responses = append(responses, model.NewPurchaseLinkResponse(link, h.baseURL, now))
	}

	handleSuccess(c, responses, http.StatusOK)
}
