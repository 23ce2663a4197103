package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xavierau/event-platform-sub006/internal/model"
	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
)

type TicketDefinitionRepository interface {
	Create(ctx context.Context, ticket *model.TicketDefinition) (*model.TicketDefinition, error)
	FindByID(ctx context.Context, id int) (*model.TicketDefinition, error)
	FindByIDs(ctx context.Context, ids []int) (map[int]*model.TicketDefinition, error)

	// Transaction methods
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int) (*model.TicketDefinition, error)
}

type TicketDefinitionRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewTicketDefinitionRepository(pool *pgxpool.Pool) TicketDefinitionRepository {
	return &TicketDefinitionRepositoryImpl{
		pool: pool,
	}
}

const ticketDefinitionColumns = `id, name, price, currency, total_quantity, created_at, updated_at`

func scanTicketDefinition(row pgx.Row) (*model.TicketDefinition, error) {
	var ticket model.TicketDefinition
	err := row.Scan(
		&ticket.ID,
		&ticket.Name,
		&ticket.Price,
		&ticket.Currency,
		&ticket.TotalQuantity,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *TicketDefinitionRepositoryImpl) Create(ctx context.Context, ticket *model.TicketDefinition) (*model.TicketDefinition, error) {
	query := `
		INSERT INTO ticket_definitions (name, price, currency, total_quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + ticketDefinitionColumns

	created, err := scanTicketDefinition(r.pool.QueryRow(ctx, query,
		ticket.Name, ticket.Price, ticket.Currency, ticket.TotalQuantity,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket definition: %w", err)
	}

	return created, nil
}

func (r *TicketDefinitionRepositoryImpl) FindByID(ctx context.Context, id int) (*model.TicketDefinition, error) {
	query := `SELECT ` + ticketDefinitionColumns + ` FROM ticket_definitions WHERE id = $1`

	ticket, err := scanTicketDefinition(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketDefinitionNotFound
		}
		return nil, err
	}

	return ticket, nil
}

func (r *TicketDefinitionRepositoryImpl) FindByIDs(ctx context.Context, ids []int) (map[int]*model.TicketDefinition, error) {
	tickets := make(map[int]*model.TicketDefinition, len(ids))
	if len(ids) == 0 {
		return tickets, nil
	}

	query := `SELECT ` + ticketDefinitionColumns + ` FROM ticket_definitions WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		ticket, err := scanTicketDefinition(rows)
		if err != nil {
			return nil, err
		}
		tickets[ticket.ID] = ticket
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tickets, nil
}

// FindByIDWithLock 用 FOR NO KEY UPDATE：庫存檢查彼此互斥，
// 但不擋 booking / allocation 寫入時外鍵檢查取得的 KEY SHARE 鎖
func (r *TicketDefinitionRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int) (*model.TicketDefinition, error) {
	query := `SELECT ` + ticketDefinitionColumns + ` FROM ticket_definitions WHERE id = $1 FOR NO KEY UPDATE`

	ticket, err := scanTicketDefinition(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketDefinitionNotFound
		}
		return nil, err
	}

	return ticket, nil
}
