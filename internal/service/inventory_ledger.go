package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/xavierau/event-platform-sub006/internal/cache"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/repository"
	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
	"github.com/xavierau/event-platform-sub006/pkg/logger"
	"go.uber.org/zap"
)

type InventoryLedger interface {
	// 必須在呼叫端的交易內執行，鎖會持有到交易結束
	Check(ctx context.Context, tx pgx.Tx, query model.AvailabilityQuery) (*model.Availability, error)
	// 不上鎖的唯讀快照，經過 Redis 快取
	Snapshot(ctx context.Context, ticketDefinitionID, eventOccurrenceID int) (*model.Availability, error)
}

type InventoryLedgerImpl struct {
	ticketRepository     repository.TicketDefinitionRepository
	occurrenceRepository repository.EventOccurrenceRepository
	bookingRepository    repository.BookingRepository
	allocationRepository repository.HoldAllocationRepository
	cache                cache.AvailabilityCache
}

func NewInventoryLedger(
	ticketRepository repository.TicketDefinitionRepository,
	occurrenceRepository repository.EventOccurrenceRepository,
	bookingRepository repository.BookingRepository,
	allocationRepository repository.HoldAllocationRepository,
	availabilityCache cache.AvailabilityCache,
) InventoryLedger {
	return &InventoryLedgerImpl{
		ticketRepository:     ticketRepository,
		occurrenceRepository: occurrenceRepository,
		bookingRepository:    bookingRepository,
		allocationRepository: allocationRepository,
		cache:                availabilityCache,
	}
}

// Check 鎖定順序：票種 → booking → 其他 hold 的 allocation
func (l *InventoryLedgerImpl) Check(ctx context.Context, tx pgx.Tx, query model.AvailabilityQuery) (*model.Availability, error) {
	ticket, err := l.ticketRepository.FindByIDWithLock(ctx, tx, query.TicketDefinitionID)
	if err != nil {
		return nil, err
	}

	if query.Requested < query.AlreadyPurchased {
		return nil, &apperrors.InsufficientInventoryError{
			TicketDefinitionID: ticket.ID,
			TicketName:         ticket.Name,
			Requested:          query.Requested,
			Purchased:          query.AlreadyPurchased,
		}
	}

	if ticket.IsUnlimited() {
		return &model.Availability{
			TicketDefinitionID: ticket.ID,
			EventOccurrenceID:  query.EventOccurrenceID,
			TicketName:         ticket.Name,
			Unlimited:          true,
		}, nil
	}

	booked, err := l.bookingRepository.SumReservedWithLock(ctx, tx, ticket.ID, query.EventOccurrenceID)
	if err != nil {
		return nil, err
	}

	held, err := l.allocationRepository.SumHeldWithLock(ctx, tx, ticket.ID, query.EventOccurrenceID, query.ExcludeHoldID)
	if err != nil {
		return nil, err
	}

	// 已透過本 hold 售出的數量已經算在 booked 裡，加回來避免重複扣除
	availability := newAvailability(ticket, query.EventOccurrenceID, booked, held, query.AlreadyPurchased)
	if !availability.Allows(query.Requested) {
		return nil, &apperrors.InsufficientInventoryError{
			TicketDefinitionID: ticket.ID,
			TicketName:         ticket.Name,
			Requested:          query.Requested,
			Available:          *availability.Available,
		}
	}

	return availability, nil
}

func (l *InventoryLedgerImpl) Snapshot(ctx context.Context, ticketDefinitionID, eventOccurrenceID int) (*model.Availability, error) {
	log := logger.WithComponent("inventory_ledger")

	if cached, ok, err := l.cache.Get(ctx, ticketDefinitionID, eventOccurrenceID); err != nil {
		log.Warn("availability cache read failed", zap.Int("ticket_definition_id", ticketDefinitionID), zap.Error(err))
	} else if ok {
		return cached, nil
	}

	ticket, err := l.ticketRepository.FindByID(ctx, ticketDefinitionID)
	if err != nil {
		return nil, err
	}
	if _, err := l.occurrenceRepository.FindByID(ctx, eventOccurrenceID); err != nil {
		return nil, err
	}

	var availability *model.Availability
	if ticket.IsUnlimited() {
		availability = &model.Availability{
			TicketDefinitionID: ticket.ID,
			EventOccurrenceID:  eventOccurrenceID,
			TicketName:         ticket.Name,
			Unlimited:          true,
		}
	} else {
		booked, err := l.bookingRepository.SumReserved(ctx, ticket.ID, eventOccurrenceID)
		if err != nil {
			return nil, err
		}
		held, err := l.allocationRepository.SumHeld(ctx, ticket.ID, eventOccurrenceID)
		if err != nil {
			return nil, err
		}
		availability = newAvailability(ticket, eventOccurrenceID, booked, held, 0)
	}

	if err := l.cache.Set(ctx, availability); err != nil {
		log.Warn("availability cache write failed", zap.Int("ticket_definition_id", ticketDefinitionID), zap.Error(err))
	}

	return availability, nil
}

func newAvailability(ticket *model.TicketDefinition, eventOccurrenceID, booked, held, alreadyPurchased int) *model.Availability {
	available := *ticket.TotalQuantity - booked - held + alreadyPurchased
	if available < 0 {
		available = 0
	}

	return &model.Availability{
		TicketDefinitionID: ticket.ID,
		EventOccurrenceID:  eventOccurrenceID,
		TicketName:         ticket.Name,
		TotalQuantity:      ticket.TotalQuantity,
		Booked:             booked,
		HeldElsewhere:      held,
		Available:          &available,
	}
}
