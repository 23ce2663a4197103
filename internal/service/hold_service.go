package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/xavierau/event-platform-sub006/internal/clock"
	"github.com/xavierau/event-platform-sub006/internal/database"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/queue"
	"github.com/xavierau/event-platform-sub006/internal/repository"
	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
	"github.com/xavierau/event-platform-sub006/pkg/logger"
	"go.uber.org/zap"
)

type TicketHoldService interface {
	// 建立 hold 與 allocations，所有票種都通過庫存檢查才寫入
	Create(ctx context.Context, req model.CreateHoldRequest, createdBy int) (*model.TicketHold, error)
	// 更新基本資料；Allocations 不為 nil 時整組替換
	Update(ctx context.Context, id uuid.UUID, req model.UpdateHoldRequest) (*model.TicketHold, error)
	// 釋放 hold 並撤銷所有 active link，不可逆
	Release(ctx context.Context, id uuid.UUID, releasedBy int) (*model.TicketHold, error)
	GetByID(ctx context.Context, id int) (*model.TicketHold, error)
	GetByUUID(ctx context.Context, id uuid.UUID) (*model.TicketHold, error)
	List(ctx context.Context, filter model.HoldFilter) ([]*model.TicketHold, error)
}

type TicketHoldServiceImpl struct {
	txManager            database.TxManager
	holdRepository       repository.TicketHoldRepository
	allocationRepository repository.HoldAllocationRepository
	linkRepository       repository.PurchaseLinkRepository
	occurrenceRepository repository.EventOccurrenceRepository
	ledger               InventoryLedger
	eventQueue           queue.EventQueue
	clock                clock.Clock
}

func NewTicketHoldService(
	txManager database.TxManager,
	holdRepository repository.TicketHoldRepository,
	allocationRepository repository.HoldAllocationRepository,
	linkRepository repository.PurchaseLinkRepository,
	occurrenceRepository repository.EventOccurrenceRepository,
	ledger InventoryLedger,
	eventQueue queue.EventQueue,
	clk clock.Clock,
) TicketHoldService {
	return &TicketHoldServiceImpl{
		txManager:            txManager,
		holdRepository:       holdRepository,
		allocationRepository: allocationRepository,
		linkRepository:       linkRepository,
		occurrenceRepository: occurrenceRepository,
		ledger:               ledger,
		eventQueue:           eventQueue,
		clock:                clk,
	}
}

func (s *TicketHoldServiceImpl) Create(ctx context.Context, req model.CreateHoldRequest, createdBy int) (*model.TicketHold, error) {
	now := s.clock.Now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	if _, err := s.occurrenceRepository.FindByID(ctx, req.EventOccurrenceID); err != nil {
		return nil, err
	}

	allocations := sortAllocationInputs(req.Allocations)

	var created *model.TicketHold
	err := s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		// 1. 逐一檢查庫存（依票種 id 排序，鎖定順序固定）
		for _, a := range allocations {
			if _, err := s.ledger.Check(ctx, tx, model.AvailabilityQuery{
				TicketDefinitionID: a.TicketDefinitionID,
				EventOccurrenceID:  req.EventOccurrenceID,
				Requested:          a.AllocatedQuantity,
			}); err != nil {
				return err
			}
		}

		// 2. 寫入 hold
		hold, err := s.holdRepository.Create(ctx, tx, &model.TicketHold{
			UUID:              uuid.New(),
			EventOccurrenceID: req.EventOccurrenceID,
			OrganizerID:       req.OrganizerID,
			CreatedBy:         createdBy,
			Name:              req.Name,
			Description:       req.Description,
			InternalNotes:     req.InternalNotes,
			Status:            model.HoldStatusActive,
			ExpiresAt:         req.ExpiresAt,
			CreatedAt:         now,
		})
		if err != nil {
			return err
		}

		// 3. 寫入 allocations
		for _, a := range allocations {
			allocation, err := s.allocationRepository.Create(ctx, tx, newAllocation(hold.ID, a))
			if err != nil {
				return err
			}
			hold.Allocations = append(hold.Allocations, allocation)
		}

		created = hold
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithComponent("hold_service").Info("ticket hold created",
		zap.String("hold_uuid", created.UUID.String()),
		zap.Int("event_occurrence_id", created.EventOccurrenceID),
		zap.Int("total_allocated", created.TotalAllocated()),
	)
	s.publish(ctx, model.EventHoldCreated, created, ticketDefinitionIDs(created.Allocations))

	return created, nil
}

func (s *TicketHoldServiceImpl) Update(ctx context.Context, id uuid.UUID, req model.UpdateHoldRequest) (*model.TicketHold, error) {
	now := s.clock.Now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	current, err := s.holdRepository.FindByUUID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		updated  *model.TicketHold
		affected []int
	)
	err = s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		// 1. 鎖 hold
		hold, err := s.holdRepository.FindByIDWithLock(ctx, tx, current.ID)
		if err != nil {
			return err
		}
		if !hold.IsUsable(now) {
			return apperrors.ErrHoldNotActive
		}

		// 2. 庫存檢查在鎖自己的 allocations 之前，和 Create 一樣是 票種 → booking → allocation
		var requested []model.AllocationInput
		if req.Allocations != nil {
			requested = sortAllocationInputs(*req.Allocations)
			snapshot, err := s.allocationRepository.ListByHoldID(ctx, hold.ID)
			if err != nil {
				return err
			}
			if err := s.checkAllocations(ctx, tx, hold, snapshot, requested); err != nil {
				return err
			}
		}

		// 3. 鎖自己的 allocations，以鎖定後的數量重新確認已售出限制
		existing, err := s.allocationRepository.ListByHoldIDWithLock(ctx, tx, hold.ID)
		if err != nil {
			return err
		}

		allocations := existing
		if req.Allocations != nil {
			allocations, affected, err = s.applyAllocations(ctx, tx, hold, existing, requested, now)
			if err != nil {
				return err
			}
		}

		// 4. 更新基本資料
		hold, err = s.holdRepository.Update(ctx, tx, hold.ID, req.Params(), now)
		if err != nil {
			return err
		}

		hold.Allocations = allocations
		updated = hold
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(affected) > 0 {
		s.publish(ctx, model.EventHoldUpdated, updated, affected)
	}

	return updated, nil
}

// checkAllocations 每個要求的票種都要通過庫存檢查；requested 已依票種 id 排序
func (s *TicketHoldServiceImpl) checkAllocations(
	ctx context.Context,
	tx pgx.Tx,
	hold *model.TicketHold,
	existing []*model.HoldAllocation,
	requested []model.AllocationInput,
) error {
	byTicket := allocationsByTicket(existing)
	if err := guardRemovedAllocations(existing, requested); err != nil {
		return err
	}

	for _, in := range requested {
		alreadyPurchased := 0
		if a, ok := byTicket[in.TicketDefinitionID]; ok {
			alreadyPurchased = a.PurchasedQuantity
		}
		if _, err := s.ledger.Check(ctx, tx, model.AvailabilityQuery{
			TicketDefinitionID: in.TicketDefinitionID,
			EventOccurrenceID:  hold.EventOccurrenceID,
			Requested:          in.AllocatedQuantity,
			ExcludeHoldID:      &hold.ID,
			AlreadyPurchased:   alreadyPurchased,
		}); err != nil {
			return err
		}
	}
	return nil
}

// applyAllocations 在 allocations 鎖住後刪除、更新、新增
// 檢查到鎖定之間可能有新的購買，所以已售出限制要再確認一次
func (s *TicketHoldServiceImpl) applyAllocations(
	ctx context.Context,
	tx pgx.Tx,
	hold *model.TicketHold,
	existing []*model.HoldAllocation,
	requested []model.AllocationInput,
	now time.Time,
) ([]*model.HoldAllocation, []int, error) {
	byTicket := allocationsByTicket(existing)
	if err := guardRemovedAllocations(existing, requested); err != nil {
		return nil, nil, err
	}

	keep := make(map[int]bool, len(requested))
	for _, in := range requested {
		keep[in.TicketDefinitionID] = true
		if a, ok := byTicket[in.TicketDefinitionID]; ok && in.AllocatedQuantity < a.PurchasedQuantity {
			return nil, nil, &apperrors.InsufficientInventoryError{
				TicketDefinitionID: in.TicketDefinitionID,
				Requested:          in.AllocatedQuantity,
				Purchased:          a.PurchasedQuantity,
			}
		}
	}

	affected := make([]int, 0, len(requested)+len(existing))
	for _, a := range existing {
		if keep[a.TicketDefinitionID] {
			continue
		}
		if err := s.allocationRepository.Delete(ctx, tx, a.ID); err != nil {
			return nil, nil, err
		}
		affected = append(affected, a.TicketDefinitionID)
	}

	result := make([]*model.HoldAllocation, 0, len(requested))
	for _, in := range requested {
		if current, ok := byTicket[in.TicketDefinitionID]; ok {
			next := *current
			next.AllocatedQuantity = in.AllocatedQuantity
			next.PricingMode = in.PricingMode
			next.CustomPrice = in.CustomPrice
			next.DiscountPercentage = in.DiscountPercentage

			saved, err := s.allocationRepository.Update(ctx, tx, &next, now)
			if err != nil {
				return nil, nil, err
			}
			result = append(result, saved)
		} else {
			saved, err := s.allocationRepository.Create(ctx, tx, newAllocation(hold.ID, in))
			if err != nil {
				return nil, nil, err
			}
			result = append(result, saved)
		}
		affected = append(affected, in.TicketDefinitionID)
	}

	return result, affected, nil
}

func allocationsByTicket(allocations []*model.HoldAllocation) map[int]*model.HoldAllocation {
	byTicket := make(map[int]*model.HoldAllocation, len(allocations))
	for _, a := range allocations {
		byTicket[a.TicketDefinitionID] = a
	}
	return byTicket
}

// guardRemovedAllocations 不再需要的 allocation 若已有銷售，不能刪除
func guardRemovedAllocations(existing []*model.HoldAllocation, requested []model.AllocationInput) error {
	keep := make(map[int]bool, len(requested))
	for _, in := range requested {
		keep[in.TicketDefinitionID] = true
	}
	for _, a := range existing {
		if !keep[a.TicketDefinitionID] && a.PurchasedQuantity > 0 {
			return apperrors.ErrAllocationHasPurchases
		}
	}
	return nil
}

func (s *TicketHoldServiceImpl) Release(ctx context.Context, id uuid.UUID, releasedBy int) (*model.TicketHold, error) {
	now := s.clock.Now()

	current, err := s.holdRepository.FindByUUID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		released *model.TicketHold
		revoked  int64
	)
	err = s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		hold, err := s.holdRepository.FindByIDWithLock(ctx, tx, current.ID)
		if err != nil {
			return err
		}
		if hold.Status != model.HoldStatusActive {
			return apperrors.ErrHoldNotActive
		}

		hold, err = s.holdRepository.Release(ctx, tx, hold.ID, releasedBy, now)
		if err != nil {
			return err
		}

		// hold 之後才鎖 link
		revoked, err = s.linkRepository.RevokeActiveByHoldID(ctx, tx, hold.ID, releasedBy, now)
		if err != nil {
			return err
		}

		hold.Allocations, err = s.allocationRepository.ListByHoldIDWithLock(ctx, tx, hold.ID)
		if err != nil {
			return err
		}

		released = hold
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithComponent("hold_service").Info("ticket hold released",
		zap.String("hold_uuid", released.UUID.String()),
		zap.Int("released_by", releasedBy),
		zap.Int64("revoked_links", revoked),
	)
	s.publish(ctx, model.EventHoldReleased, released, ticketDefinitionIDs(released.Allocations))

	return released, nil
}

func (s *TicketHoldServiceImpl) GetByID(ctx context.Context, id int) (*model.TicketHold, error) {
	hold, err := s.holdRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withAllocations(ctx, hold)
}

func (s *TicketHoldServiceImpl) GetByUUID(ctx context.Context, id uuid.UUID) (*model.TicketHold, error) {
	hold, err := s.holdRepository.FindByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withAllocations(ctx, hold)
}

func (s *TicketHoldServiceImpl) List(ctx context.Context, filter model.HoldFilter) ([]*model.TicketHold, error) {
	holds, err := s.holdRepository.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(holds))
	for _, h := range holds {
		ids = append(ids, h.ID)
	}

	grouped, err := s.allocationRepository.ListByHoldIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, h := range holds {
		h.Allocations = grouped[h.ID]
	}

	return holds, nil
}

func (s *TicketHoldServiceImpl) withAllocations(ctx context.Context, hold *model.TicketHold) (*model.TicketHold, error) {
	allocations, err := s.allocationRepository.ListByHoldID(ctx, hold.ID)
	if err != nil {
		return nil, err
	}
	hold.Allocations = allocations
	return hold, nil
}

func (s *TicketHoldServiceImpl) publish(ctx context.Context, eventType model.EventType, hold *model.TicketHold, ticketIDs []int) {
	event := model.NewDomainEvent(eventType, s.clock.Now(), hold.EventOccurrenceID, ticketIDs)
	event.HoldID = &hold.ID
	publishAfterCommit(ctx, s.eventQueue, event)
}

func sortAllocationInputs(inputs []model.AllocationInput) []model.AllocationInput {
	sorted := make([]model.AllocationInput, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TicketDefinitionID < sorted[j].TicketDefinitionID
	})
	return sorted
}

func newAllocation(holdID int, in model.AllocationInput) *model.HoldAllocation {
	return &model.HoldAllocation{
		TicketHoldID:       holdID,
		TicketDefinitionID: in.TicketDefinitionID,
		AllocatedQuantity:  in.AllocatedQuantity,
		PurchasedQuantity:  0,
		PricingMode:        in.PricingMode,
		CustomPrice:        in.CustomPrice,
		DiscountPercentage: in.DiscountPercentage,
	}
}
