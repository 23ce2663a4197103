package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xavierau/event-platform-sub006/internal/model"
	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
)

type TicketHoldRepository interface {
	FindByID(ctx context.Context, id int) (*model.TicketHold, error)
	FindByUUID(ctx context.Context, id uuid.UUID) (*model.TicketHold, error)
	List(ctx context.Context, filter model.HoldFilter) ([]*model.TicketHold, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, hold *model.TicketHold) (*model.TicketHold, error)
	FindByIDTx(ctx context.Context, tx pgx.Tx, id int) (*model.TicketHold, error)
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int) (*model.TicketHold, error)
	Update(ctx context.Context, tx pgx.Tx, id int, params model.UpdateHoldParams, now time.Time) (*model.TicketHold, error)
	Release(ctx context.Context, tx pgx.Tx, id int, releasedBy int, now time.Time) (*model.TicketHold, error)
}

type TicketHoldRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewTicketHoldRepository(pool *pgxpool.Pool) TicketHoldRepository {
	return &TicketHoldRepositoryImpl{
		pool: pool,
	}
}

const ticketHoldColumns = `id, uuid, event_occurrence_id, organizer_id, created_by, name,
	description, internal_notes, status, expires_at, released_at, released_by,
	created_at, updated_at`

func scanTicketHold(row pgx.Row) (*model.TicketHold, error) {
	var hold model.TicketHold
	err := row.Scan(
		&hold.ID,
		&hold.UUID,
		&hold.EventOccurrenceID,
		&hold.OrganizerID,
		&hold.CreatedBy,
		&hold.Name,
		&hold.Description,
		&hold.InternalNotes,
		&hold.Status,
		&hold.ExpiresAt,
		&hold.ReleasedAt,
		&hold.ReleasedBy,
		&hold.CreatedAt,
		&hold.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func holdNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrHoldNotFound
	}
	return err
}

func (r *TicketHoldRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, hold *model.TicketHold) (*model.TicketHold, error) {
	query := `
		INSERT INTO ticket_holds (
			uuid, event_occurrence_id, organizer_id, created_by, name,
			description, internal_notes, status, expires_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING ` + ticketHoldColumns

	created, err := scanTicketHold(tx.QueryRow(ctx, query,
		hold.UUID, hold.EventOccurrenceID, hold.OrganizerID, hold.CreatedBy, hold.Name,
		hold.Description, hold.InternalNotes, hold.Status, hold.ExpiresAt, hold.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket hold: %w", err)
	}

	return created, nil
}

func (r *TicketHoldRepositoryImpl) FindByID(ctx context.Context, id int) (*model.TicketHold, error) {
	query := `SELECT ` + ticketHoldColumns + ` FROM ticket_holds WHERE id = $1`

	hold, err := scanTicketHold(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, holdNotFound(err)
	}
	return hold, nil
}

func (r *TicketHoldRepositoryImpl) FindByUUID(ctx context.Context, id uuid.UUID) (*model.TicketHold, error) {
	query := `SELECT ` + ticketHoldColumns + ` FROM ticket_holds WHERE uuid = $1`

	hold, err := scanTicketHold(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, holdNotFound(err)
	}
	return hold, nil
}

func (r *TicketHoldRepositoryImpl) FindByIDTx(ctx context.Context, tx pgx.Tx, id int) (*model.TicketHold, error) {
	query := `SELECT ` + ticketHoldColumns + ` FROM ticket_holds WHERE id = $1`

	hold, err := scanTicketHold(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, holdNotFound(err)
	}
	return hold, nil
}

func (r *TicketHoldRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int) (*model.TicketHold, error) {
	query := `SELECT ` + ticketHoldColumns + ` FROM ticket_holds WHERE id = $1 FOR UPDATE`

	hold, err := scanTicketHold(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, holdNotFound(err)
	}
	return hold, nil
}

func (r *TicketHoldRepositoryImpl) List(ctx context.Context, filter model.HoldFilter) ([]*model.TicketHold, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.EventOccurrenceID != nil {
		conditions = append(conditions, fmt.Sprintf("event_occurrence_id = $%d", argPos))
		args = append(args, *filter.EventOccurrenceID)
		argPos++
	}
	if filter.OrganizerID != nil {
		conditions = append(conditions, fmt.Sprintf("organizer_id = $%d", argPos))
		args = append(args, *filter.OrganizerID)
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}

	query := `SELECT ` + ticketHoldColumns + ` FROM ticket_holds`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
		argPos++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holds := make([]*model.TicketHold, 0)
	for rows.Next() {
		hold, err := scanTicketHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, hold)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return holds, nil
}

func (r *TicketHoldRepositoryImpl) Update(ctx context.Context, tx pgx.Tx, id int, params model.UpdateHoldParams, now time.Time) (*model.TicketHold, error) {
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	if params.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *params.Name)
		argPos++
	}
	if params.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *params.Description)
		argPos++
	}
	if params.InternalNotes != nil {
		sets = append(sets, fmt.Sprintf("internal_notes = $%d", argPos))
		args = append(args, *params.InternalNotes)
		argPos++
	}
	if params.ExpiresAt != nil {
		sets = append(sets, fmt.Sprintf("expires_at = $%d", argPos))
		args = append(args, *params.ExpiresAt)
		argPos++
	}

	// 只改 allocations 時也要更新 updated_at
	sets = append(sets, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, now)
	argPos++

	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE ticket_holds
		SET %s
		WHERE id = $%d
		RETURNING `+ticketHoldColumns, strings.Join(sets, ", "), argPos)

	hold, err := scanTicketHold(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, holdNotFound(err)
	}

	return hold, nil
}

// Release 只對 active 的 hold 生效
func (r *TicketHoldRepositoryImpl) Release(ctx context.Context, tx pgx.Tx, id int, releasedBy int, now time.Time) (*model.TicketHold, error) {
	query := `
		UPDATE ticket_holds
		SET status = 'released', released_at = $1, released_by = $2, updated_at = $1
		WHERE id = $3 AND status = 'active'
		RETURNING ` + ticketHoldColumns

	hold, err := scanTicketHold(tx.QueryRow(ctx, query, now, releasedBy, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrHoldNotActive
		}
		return nil, err
	}

	return hold, nil
}
