package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xavierau/event-platform-sub006/internal/model"
	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
)

type HoldAllocationRepository interface {
	ListByHoldID(ctx context.Context, holdID int) ([]*model.HoldAllocation, error)
	ListByHoldIDs(ctx context.Context, holdIDs []int) (map[int][]*model.HoldAllocation, error)
	// SumHeld 其他 active hold 尚未售出的配額，不上鎖
	SumHeld(ctx context.Context, ticketDefinitionID, eventOccurrenceID int) (int, error)

	// Transaction methods
	ListByHoldIDWithLock(ctx context.Context, tx pgx.Tx, holdID int) ([]*model.HoldAllocation, error)
	ListForPurchaseWithLock(ctx context.Context, tx pgx.Tx, holdID int, ticketDefinitionIDs []int) ([]*model.HoldAllocation, error)
	SumHeldWithLock(ctx context.Context, tx pgx.Tx, ticketDefinitionID, eventOccurrenceID int, excludeHoldID *int) (int, error)
	Create(ctx context.Context, tx pgx.Tx, allocation *model.HoldAllocation) (*model.HoldAllocation, error)
	Update(ctx context.Context, tx pgx.Tx, allocation *model.HoldAllocation, now time.Time) (*model.HoldAllocation, error)
	Delete(ctx context.Context, tx pgx.Tx, id int) error
	IncrementPurchased(ctx context.Context, tx pgx.Tx, id int, quantity int, now time.Time) error
}

type HoldAllocationRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewHoldAllocationRepository(pool *pgxpool.Pool) HoldAllocationRepository {
	return &HoldAllocationRepositoryImpl{
		pool: pool,
	}
}

const holdAllocationColumns = `id, ticket_hold_id, ticket_definition_id, allocated_quantity,
	purchased_quantity, pricing_mode, custom_price, discount_percentage, created_at, updated_at`

func scanHoldAllocation(row pgx.Row) (*model.HoldAllocation, error) {
	var allocation model.HoldAllocation
	err := row.Scan(
		&allocation.ID,
		&allocation.TicketHoldID,
		&allocation.TicketDefinitionID,
		&allocation.AllocatedQuantity,
		&allocation.PurchasedQuantity,
		&allocation.PricingMode,
		&allocation.CustomPrice,
		&allocation.DiscountPercentage,
		&allocation.CreatedAt,
		&allocation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

func collectHoldAllocations(rows pgx.Rows) ([]*model.HoldAllocation, error) {
	defer rows.Close()

	allocations := make([]*model.HoldAllocation, 0)
	for rows.Next() {
		allocation, err := scanHoldAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, allocation)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return allocations, nil
}

func (r *HoldAllocationRepositoryImpl) ListByHoldID(ctx context.Context, holdID int) ([]*model.HoldAllocation, error) {
	query := `SELECT ` + holdAllocationColumns + ` FROM hold_allocations WHERE ticket_hold_id = $1 ORDER BY ticket_definition_id`

	rows, err := r.pool.Query(ctx, query, holdID)
	if err != nil {
		return nil, err
	}
	return collectHoldAllocations(rows)
}

func (r *HoldAllocationRepositoryImpl) ListByHoldIDs(ctx context.Context, holdIDs []int) (map[int][]*model.HoldAllocation, error) {
	grouped := make(map[int][]*model.HoldAllocation, len(holdIDs))
	if len(holdIDs) == 0 {
		return grouped, nil
	}

	query := `SELECT ` + holdAllocationColumns + ` FROM hold_allocations WHERE ticket_hold_id = ANY($1) ORDER BY ticket_hold_id, ticket_definition_id`

	rows, err := r.pool.Query(ctx, query, holdIDs)
	if err != nil {
		return nil, err
	}

	allocations, err := collectHoldAllocations(rows)
	if err != nil {
		return nil, err
	}
	for _, a := range allocations {
		grouped[a.TicketHoldID] = append(grouped[a.TicketHoldID], a)
	}

	return grouped, nil
}

func (r *HoldAllocationRepositoryImpl) ListByHoldIDWithLock(ctx context.Context, tx pgx.Tx, holdID int) ([]*model.HoldAllocation, error) {
	query := `SELECT ` + holdAllocationColumns + ` FROM hold_allocations WHERE ticket_hold_id = $1 ORDER BY id FOR UPDATE`

	rows, err := tx.Query(ctx, query, holdID)
	if err != nil {
		return nil, err
	}
	return collectHoldAllocations(rows)
}

// ListForPurchaseWithLock 只鎖購買會用到的 allocation，依 id 排序避免 deadlock
func (r *HoldAllocationRepositoryImpl) ListForPurchaseWithLock(ctx context.Context, tx pgx.Tx, holdID int, ticketDefinitionIDs []int) ([]*model.HoldAllocation, error) {
	query := `
		SELECT ` + holdAllocationColumns + `
		FROM hold_allocations
		WHERE ticket_hold_id = $1 AND ticket_definition_id = ANY($2)
		ORDER BY id
		FOR UPDATE`

	rows, err := tx.Query(ctx, query, holdID, ticketDefinitionIDs)
	if err != nil {
		return nil, err
	}
	return collectHoldAllocations(rows)
}

func (r *HoldAllocationRepositoryImpl) SumHeld(ctx context.Context, ticketDefinitionID, eventOccurrenceID int) (int, error) {
	query := `
		SELECT COALESCE(SUM(ha.allocated_quantity - ha.purchased_quantity), 0)
		FROM hold_allocations ha
		JOIN ticket_holds th ON th.id = ha.ticket_hold_id
		WHERE ha.ticket_definition_id = $1
		  AND th.event_occurrence_id = $2
		  AND th.status = 'active'
	`

	var total int
	if err := r.pool.QueryRow(ctx, query, ticketDefinitionID, eventOccurrenceID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// SumHeldWithLock 鎖住同場次其他 active hold 的 allocation 後加總未售出數量
func (r *HoldAllocationRepositoryImpl) SumHeldWithLock(ctx context.Context, tx pgx.Tx, ticketDefinitionID, eventOccurrenceID int, excludeHoldID *int) (int, error) {
	query := `
		SELECT COALESCE(SUM(h.allocated_quantity - h.purchased_quantity), 0)
		FROM (
			SELECT ha.allocated_quantity, ha.purchased_quantity
			FROM hold_allocations ha
			JOIN ticket_holds th ON th.id = ha.ticket_hold_id
			WHERE ha.ticket_definition_id = $1
			  AND th.event_occurrence_id = $2
			  AND th.status = 'active'
			  AND ($3::bigint IS NULL OR th.id <> $3::bigint)
			FOR UPDATE OF ha
		) h
	`

	var total int
	if err := tx.QueryRow(ctx, query, ticketDefinitionID, eventOccurrenceID, excludeHoldID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum held allocations: %w", err)
	}
	return total, nil
}

func (r *HoldAllocationRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, allocation *model.HoldAllocation) (*model.HoldAllocation, error) {
	query := `
		INSERT INTO hold_allocations (
			ticket_hold_id, ticket_definition_id, allocated_quantity, purchased_quantity,
			pricing_mode, custom_price, discount_percentage
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + holdAllocationColumns

	created, err := scanHoldAllocation(tx.QueryRow(ctx, query,
		allocation.TicketHoldID, allocation.TicketDefinitionID, allocation.AllocatedQuantity,
		allocation.PurchasedQuantity, allocation.PricingMode, allocation.CustomPrice,
		allocation.DiscountPercentage,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create hold allocation: %w", err)
	}

	return created, nil
}

// Update 改配額與定價；purchased_quantity 只能透過 IncrementPurchased 變動
func (r *HoldAllocationRepositoryImpl) Update(ctx context.Context, tx pgx.Tx, allocation *model.HoldAllocation, now time.Time) (*model.HoldAllocation, error) {
	query := `
		UPDATE hold_allocations
		SET allocated_quantity = $1, pricing_mode = $2, custom_price = $3,
		    discount_percentage = $4, updated_at = $5
		WHERE id = $6 AND purchased_quantity <= $1
		RETURNING ` + holdAllocationColumns

	updated, err := scanHoldAllocation(tx.QueryRow(ctx, query,
		allocation.AllocatedQuantity, allocation.PricingMode, allocation.CustomPrice,
		allocation.DiscountPercentage, now, allocation.ID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperrors.InsufficientInventoryError{
				TicketDefinitionID: allocation.TicketDefinitionID,
				Requested:          allocation.AllocatedQuantity,
			}
		}
		return nil, fmt.Errorf("failed to update hold allocation: %w", err)
	}

	return updated, nil
}

func (r *HoldAllocationRepositoryImpl) Delete(ctx context.Context, tx pgx.Tx, id int) error {
	query := `DELETE FROM hold_allocations WHERE id = $1 AND purchased_quantity = 0`

	result, err := tx.Exec(ctx, query, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrAllocationHasPurchases
	}

	return nil
}

// IncrementPurchased 條件式遞增，超過配額時不會寫入
func (r *HoldAllocationRepositoryImpl) IncrementPurchased(ctx context.Context, tx pgx.Tx, id int, quantity int, now time.Time) error {
	query := `
		UPDATE hold_allocations
		SET purchased_quantity = purchased_quantity + $1, updated_at = $2
		WHERE id = $3 AND purchased_quantity + $1 <= allocated_quantity
	`

	result, err := tx.Exec(ctx, query, quantity, now, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return &apperrors.InsufficientHoldInventoryError{Requested: quantity}
	}

	return nil
}
