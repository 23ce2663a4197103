package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
	"github.com/xavierau/event-platform-sub006/pkg/logger"
	"go.uber.org/zap"
)

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func paramInt(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", apperrors.ErrInvalidInput, name)
	}
	return id, nil
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", apperrors.ErrInvalidInput, name)
	}
	return id, nil
}

func handleSuccess(c *gin.Context, data interface{}, statusCode int) {
	if data != nil {
		c.JSON(statusCode, data)
	} else {
		c.Status(statusCode)
	}
}

// handleError 將 service 錯誤轉成 HTTP 回應
// 業務錯誤記 Warn，其餘記 Error 並回 500
func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))

	var (
		validationErrs apperrors.ValidationErrors
		inventoryErr   *apperrors.InsufficientInventoryError
		holdStockErr   *apperrors.InsufficientHoldInventoryError
		linkErr        *apperrors.LinkNotUsableError
	)

	switch {
	case errors.As(err, &validationErrs):
		log.Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Validation failed",
			"fields": validationErrs,
		})
	case errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case errors.As(err, &inventoryErr):
		log.Warn("Insufficient inventory")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":                err.Error(),
			"ticket_definition_id": inventoryErr.TicketDefinitionID,
			"requested":            inventoryErr.Requested,
			"available":            inventoryErr.Available,
		})
	case errors.As(err, &holdStockErr):
		log.Warn("Insufficient hold inventory")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":                err.Error(),
			"ticket_definition_id": holdStockErr.TicketDefinitionID,
			"requested":            holdStockErr.Requested,
			"available":            holdStockErr.Available,
		})
	case errors.As(err, &linkErr):
		log.Warn("Purchase link not usable")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Purchase link is not usable",
			"reason": linkErr.Reason,
		})
	case errors.Is(err, apperrors.ErrLinkNotUsable):
		log.Warn("Purchase link not usable")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Purchase link is not usable",
		})
	case errors.Is(err, apperrors.ErrHoldNotActive):
		log.Warn("Ticket hold not active")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Ticket hold is no longer active",
		})
	case errors.Is(err, apperrors.ErrAllocationHasPurchases):
		log.Warn("Allocation has purchases")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Allocation already has purchases",
		})
	case errors.Is(err, apperrors.ErrUserNotAuthorizedForLink):
		log.Warn("User not authorized for link")
		c.JSON(http.StatusForbidden, gin.H{
			"error": "User is not authorized for this purchase link",
		})
	case errors.Is(err, apperrors.ErrLinkNotFound),
		errors.Is(err, apperrors.ErrHoldNotFound),
		errors.Is(err, apperrors.ErrTicketDefinitionNotFound),
		errors.Is(err, apperrors.ErrEventOccurrenceNotFound),
		errors.Is(err, apperrors.ErrUserNotFound),
		errors.Is(err, apperrors.ErrAccessNotFound):
		log.Warn("Resource not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
		})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}
