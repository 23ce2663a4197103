package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/service"
)

// AvailabilitySnapshotter 只需要 ledger 的唯讀查詢
type AvailabilitySnapshotter interface {
	Snapshot(ctx context.Context, ticketDefinitionID, eventOccurrenceID int) (*model.Availability, error)
}

var _ AvailabilitySnapshotter = (service.InventoryLedger)(nil)

type AvailabilityHandler struct {
	ledger AvailabilitySnapshotter
}

func NewAvailabilityHandler(ledger AvailabilitySnapshotter) *AvailabilityHandler {
	return &AvailabilityHandler{ledger: ledger}
}

func (h *AvailabilityHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("ticket-definitions/:id/availability", h.GetAvailability)
}

type availabilityQuery struct {
	EventOccurrenceID int `form:"event_occurrence_id" binding:"required,min=1"`
}

func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	id, err := paramInt(c, "id")
	if err != nil {
		handleError(c, err, "GetAvailability")
		return
	}

	var query availabilityQuery
	if err := BindQuery(c, &query); err != nil {
		return
	}

	availability, err := h.ledger.Snapshot(c.Request.Context(), id, query.EventOccurrenceID)
	if err != nil {
		handleError(c, err, "GetAvailability")
		return
	}

	handleSuccess(c, availability, http.StatusOK)
}

// Pinger 健康檢查項目，例如 pool.Ping
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(gin.H, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
}
