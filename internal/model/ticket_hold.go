package model

import (
	"time"

	"github.com/google/uuid"
)

// TicketHold 為某場次保留的庫存，由多個 HoldAllocation 組成
type TicketHold struct {
	ID                int        `json:"id" db:"id"`
	UUID              uuid.UUID  `json:"uuid" db:"uuid"`
	EventOccurrenceID int        `json:"event_occurrence_id" db:"event_occurrence_id"`
	OrganizerID       *int       `json:"organizer_id,omitempty" db:"organizer_id"`
	CreatedBy         int        `json:"created_by" db:"created_by"`
	Name              string     `json:"name" db:"name"`
	Description       *string    `json:"description,omitempty" db:"description"`
	InternalNotes     *string    `json:"internal_notes,omitempty" db:"internal_notes"`
	Status            HoldStatus `json:"status" db:"status"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	ReleasedAt        *time.Time `json:"released_at,omitempty" db:"released_at"`
	ReleasedBy        *int       `json:"released_by,omitempty" db:"released_by"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`

	Allocations []*HoldAllocation `json:"allocations" db:"-"`
}

func (h *TicketHold) IsExpired(now time.Time) bool {
	return h.ExpiresAt != nil && !h.ExpiresAt.After(now)
}

// IsUsable active 且尚未過期
func (h *TicketHold) IsUsable(now time.Time) bool {
	return h.Status == HoldStatusActive && !h.IsExpired(now)
}

func (h *TicketHold) TotalAllocated() int {
	total := 0
	for _, a := range h.Allocations {
		total += a.AllocatedQuantity
	}
	return total
}

func (h *TicketHold) TotalPurchased() int {
	total := 0
	for _, a := range h.Allocations {
		total += a.PurchasedQuantity
	}
	return total
}

func (h *TicketHold) TotalRemaining() int {
	return h.TotalAllocated() - h.TotalPurchased()
}

// AllocationFor 找出該票種的 allocation
func (h *TicketHold) AllocationFor(ticketDefinitionID int) *HoldAllocation {
	for _, a := range h.Allocations {
		if a.TicketDefinitionID == ticketDefinitionID {
			return a
		}
	}
	return nil
}

// HoldFilter List 的查詢條件；零值代表不過濾
type HoldFilter struct {
	EventOccurrenceID *int
	OrganizerID       *int
	Status            *HoldStatus
	Limit             int
	Offset            int
}

type UpdateHoldParams struct {
	Name          *string
	Description   *string
	InternalNotes *string
	ExpiresAt     *time.Time
}

// HoldAllocation hold 內某票種的配額
type HoldAllocation struct {
	ID                 int         `json:"id" db:"id"`
	TicketHoldID       int         `json:"ticket_hold_id" db:"ticket_hold_id"`
	TicketDefinitionID int         `json:"ticket_definition_id" db:"ticket_definition_id"`
	AllocatedQuantity  int         `json:"allocated_quantity" db:"allocated_quantity"`
	PurchasedQuantity  int         `json:"purchased_quantity" db:"purchased_quantity"`
	PricingMode        PricingMode `json:"pricing_mode" db:"pricing_mode"`
	CustomPrice        *int        `json:"custom_price,omitempty" db:"custom_price"`
	DiscountPercentage *float64    `json:"discount_percentage,omitempty" db:"discount_percentage"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

func (a *HoldAllocation) RemainingQuantity() int {
	remaining := a.AllocatedQuantity - a.PurchasedQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (a *HoldAllocation) CanPurchase(quantity int) bool {
	return quantity > 0 && quantity <= a.RemainingQuantity()
}
