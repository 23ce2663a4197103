package model

import (
	"time"

	"github.com/google/uuid"
)

// AllocationResponse allocation 回應
type AllocationResponse struct {
	ID                 int         `json:"id"`
	TicketDefinitionID int         `json:"ticket_definition_id"`
	AllocatedQuantity  int         `json:"allocated_quantity"`
	PurchasedQuantity  int         `json:"purchased_quantity"`
	RemainingQuantity  int         `json:"remaining_quantity"`
	PricingMode        PricingMode `json:"pricing_mode"`
	PricingModeLabel   string      `json:"pricing_mode_label"`
	CustomPrice        *int        `json:"custom_price,omitempty"`
	DiscountPercentage *float64    `json:"discount_percentage,omitempty"`
}

// HoldResponse hold 回應，包含計算欄位
type HoldResponse struct {
	ID                int                  `json:"id"`
	UUID              uuid.UUID            `json:"uuid"`
	EventOccurrenceID int                  `json:"event_occurrence_id"`
	OrganizerID       *int                 `json:"organizer_id,omitempty"`
	CreatedBy         int                  `json:"created_by"`
	Name              string               `json:"name"`
	Description       *string              `json:"description,omitempty"`
	InternalNotes     *string              `json:"internal_notes,omitempty"`
	Status            HoldStatus           `json:"status"`
	StatusLabel       string               `json:"status_label"`
	ExpiresAt         *time.Time           `json:"expires_at,omitempty"`
	ReleasedAt        *time.Time           `json:"released_at,omitempty"`
	ReleasedBy        *int                 `json:"released_by,omitempty"`
	IsExpired         bool                 `json:"is_expired"`
	IsUsable          bool                 `json:"is_usable"`
	TotalAllocated    int                  `json:"total_allocated"`
	TotalPurchased    int                  `json:"total_purchased"`
	TotalRemaining    int                  `json:"total_remaining"`
	Allocations       []AllocationResponse `json:"allocations"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

func NewHoldResponse(h *TicketHold, now time.Time) HoldResponse {
	allocations := make([]AllocationResponse, 0, len(h.Allocations))
	for _, a := range h.Allocations {
		allocations = append(allocations, AllocationResponse{
			ID:                 a.ID,
			TicketDefinitionID: a.TicketDefinitionID,
			AllocatedQuantity:  a.AllocatedQuantity,
			PurchasedQuantity:  a.PurchasedQuantity,
			RemainingQuantity:  a.RemainingQuantity(),
			PricingMode:        a.PricingMode,
			PricingModeLabel:   a.PricingMode.Label(),
			CustomPrice:        a.CustomPrice,
			DiscountPercentage: a.DiscountPercentage,
		})
	}

	return HoldResponse{
		ID:                h.ID,
		UUID:              h.UUID,
		EventOccurrenceID: h.EventOccurrenceID,
		OrganizerID:       h.OrganizerID,
		CreatedBy:         h.CreatedBy,
		Name:              h.Name,
		Description:       h.Description,
		InternalNotes:     h.InternalNotes,
		Status:            h.Status,
		StatusLabel:       h.Status.Label(),
		ExpiresAt:         h.ExpiresAt,
		ReleasedAt:        h.ReleasedAt,
		ReleasedBy:        h.ReleasedBy,
		IsExpired:         h.IsExpired(now),
		IsUsable:          h.IsUsable(now),
		TotalAllocated:    h.TotalAllocated(),
		TotalPurchased:    h.TotalPurchased(),
		TotalRemaining:    h.TotalRemaining(),
		Allocations:       allocations,
		CreatedAt:         h.CreatedAt,
		UpdatedAt:         h.UpdatedAt,
	}
}

// PurchaseLinkResponse link 回應
type PurchaseLinkResponse struct {
	ID                int                    `json:"id"`
	UUID              uuid.UUID              `json:"uuid"`
	TicketHoldID      int                    `json:"ticket_hold_id"`
	Code              string                 `json:"code"`
	Name              *string                `json:"name,omitempty"`
	AssignedUserID    *int                   `json:"assigned_user_id,omitempty"`
	IsAnonymous       bool                   `json:"is_anonymous"`
	QuantityMode      QuantityMode           `json:"quantity_mode"`
	QuantityLimit     *int                   `json:"quantity_limit,omitempty"`
	QuantityPurchased int                    `json:"quantity_purchased"`
	RemainingQuantity *int                   `json:"remaining_quantity"`
	Status            LinkStatus             `json:"status"`
	StatusLabel       string                 `json:"status_label"`
	ExpiresAt         *time.Time             `json:"expires_at,omitempty"`
	RevokedAt         *time.Time             `json:"revoked_at,omitempty"`
	RevokedBy         *int                   `json:"revoked_by,omitempty"`
	IsExpired         bool                   `json:"is_expired"`
	IsUsable          bool                   `json:"is_usable"`
	Notes             *string                `json:"notes,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	FullURL           string                 `json:"full_url"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

func NewPurchaseLinkResponse(l *PurchaseLink, baseURL string, now time.Time) PurchaseLinkResponse {
	return PurchaseLinkResponse{
		ID:                l.ID,
		UUID:              l.UUID,
		TicketHoldID:      l.TicketHoldID,
		Code:              l.Code,
		Name:              l.Name,
		AssignedUserID:    l.AssignedUserID,
		IsAnonymous:       l.IsAnonymous(),
		QuantityMode:      l.QuantityMode,
		QuantityLimit:     l.QuantityLimit,
		QuantityPurchased: l.QuantityPurchased,
		RemainingQuantity: l.RemainingQuantity(),
		Status:            l.Status,
		StatusLabel:       l.Status.Label(),
		ExpiresAt:         l.ExpiresAt,
		RevokedAt:         l.RevokedAt,
		RevokedBy:         l.RevokedBy,
		IsExpired:         l.IsExpired(now),
		IsUsable:          l.IsUsable(now),
		Notes:             l.Notes,
		Metadata:          l.Metadata,
		FullURL:           LinkURL(baseURL, l.Code),
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

// LinkURL 公開購買頁面的網址
func LinkURL(baseURL, code string) string {
	return baseURL + "/links/" + code
}

// PublicLinkResponse 顧客開啟連結時看到的內容，不含 internal notes
type PublicLinkResponse struct {
	Code              string          `json:"code"`
	Name              *string         `json:"name,omitempty"`
	HoldName          string          `json:"hold_name"`
	HoldDescription   *string         `json:"hold_description,omitempty"`
	EventOccurrenceID int             `json:"event_occurrence_id"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
	RemainingQuantity *int            `json:"remaining_quantity"`
	IsUsable          bool            `json:"is_usable"`
	AccessID          *int            `json:"access_id,omitempty"`
	Tickets           []LinkTicketRow `json:"tickets"`
}

// LinkTicketRow 可購買的票種與價格
type LinkTicketRow struct {
	TicketDefinitionID int         `json:"ticket_definition_id"`
	TicketName         string      `json:"ticket_name"`
	PricingMode        PricingMode `json:"pricing_mode"`
	UnitPrice          int         `json:"unit_price"`
	OriginalPrice      int         `json:"original_price"`
	Savings            int         `json:"savings"`
	SavingsPercentage  float64     `json:"savings_percentage"`
	IsFree             bool        `json:"is_free"`
	RemainingQuantity  int         `json:"remaining_quantity"`
	Currency           string      `json:"currency"`
}

// ResolvedLink link 連同 hold、allocations、票種資訊
type ResolvedLink struct {
	Link    *PurchaseLink
	Tickets map[int]*TicketDefinition
}
