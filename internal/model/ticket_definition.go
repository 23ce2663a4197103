package model

import "time"

// TicketDefinition 票種；TotalQuantity 為 nil 代表不限量
type TicketDefinition struct {
	ID            int       `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Price         int       `json:"price" db:"price"`
	Currency      string    `json:"currency" db:"currency"`
	TotalQuantity *int      `json:"total_quantity,omitempty" db:"total_quantity"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

func (t *TicketDefinition) IsUnlimited() bool {
	return t.TotalQuantity == nil
}

// AvailabilityQuery Inventory Ledger 的輸入
type AvailabilityQuery struct {
	TicketDefinitionID int
	EventOccurrenceID  int
	Requested          int
	// ExcludeHoldID 更新 hold 時排除自己的 allocation
	ExcludeHoldID *int
	// AlreadyPurchased is the purchased count of the excluded hold's allocation for this ticket.
	AlreadyPurchased int
}

// Availability 某票種在某場次的庫存快照
type Availability struct {
	TicketDefinitionID int    `json:"ticket_definition_id"`
	EventOccurrenceID  int    `json:"event_occurrence_id"`
	TicketName         string `json:"ticket_name"`
	Unlimited          bool   `json:"unlimited"`
	TotalQuantity      *int   `json:"total_quantity"`
	Booked             int    `json:"booked"`
	HeldElsewhere      int    `json:"held"`
	Available          *int   `json:"available"`
}

// Allows 判斷是否可以滿足 requested
func (a *Availability) Allows(requested int) bool {
	if a.Unlimited || a.Available == nil {
		return true
	}
	return requested <= *a.Available
}
