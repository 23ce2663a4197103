package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType domain event 種類
type EventType string

const (
	EventHoldCreated       EventType = "hold.created"
	EventHoldUpdated       EventType = "hold.updated"
	EventHoldReleased      EventType = "hold.released"
	EventLinkRevoked       EventType = "purchase_link.revoked"
	EventPurchaseCompleted EventType = "purchase.completed"
)

// DomainEvent 在交易 commit 之後發佈，內容只放 id 與數量
type DomainEvent struct {
	ID                  uuid.UUID `json:"id"`
	Type                EventType `json:"type"`
	OccurredAt          time.Time `json:"occurred_at"`
	EventOccurrenceID   int       `json:"event_occurrence_id"`
	TicketDefinitionIDs []int     `json:"ticket_definition_ids"`
	HoldID              *int      `json:"hold_id,omitempty"`
	PurchaseLinkID      *int      `json:"purchase_link_id,omitempty"`
	TransactionID       *int      `json:"transaction_id,omitempty"`
	Quantity            int       `json:"quantity,omitempty"`
}

func NewDomainEvent(eventType EventType, occurredAt time.Time, eventOccurrenceID int, ticketDefinitionIDs []int) *DomainEvent {
	return &DomainEvent{
		ID:                  uuid.New(),
		Type:                eventType,
		OccurredAt:          occurredAt,
		EventOccurrenceID:   eventOccurrenceID,
		TicketDefinitionIDs: ticketDefinitionIDs,
	}
}
