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

type EventOccurrenceRepository interface {
	Create(ctx context.Context, occurrence *model.EventOccurrence) (*model.EventOccurrence, error)
	FindByID(ctx context.Context, id int) (*model.EventOccurrence, error)
}

type EventOccurrenceRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewEventOccurrenceRepository(pool *pgxpool.Pool) EventOccurrenceRepository {
	return &EventOccurrenceRepositoryImpl{
		pool: pool,
	}
}

func (r *EventOccurrenceRepositoryImpl) Create(ctx context.Context, occurrence *model.EventOccurrence) (*model.EventOccurrence, error) {
	query := `
		INSERT INTO event_occurrences (event_id, name, starts_at)
		VALUES ($1, $2, $3)
		RETURNING id, event_id, name, starts_at, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		occurrence.EventID, occurrence.Name, occurrence.StartsAt,
	).Scan(
		&occurrence.ID,
		&occurrence.EventID,
		&occurrence.Name,
		&occurrence.StartsAt,
		&occurrence.CreatedAt,
		&occurrence.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event occurrence: %w", err)
	}

	return occurrence, nil
}

func (r *EventOccurrenceRepositoryImpl) FindByID(ctx context.Context, id int) (*model.EventOccurrence, error) {
	query := `
		SELECT id, event_id, name, starts_at, created_at, updated_at
		FROM event_occurrences
		WHERE id = $1
	`

	var occurrence model.EventOccurrence
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&occurrence.ID,
		&occurrence.EventID,
		&occurrence.Name,
		&occurrence.StartsAt,
		&occurrence.CreatedAt,
		&occurrence.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEventOccurrenceNotFound
		}
		return nil, err
	}

	return &occurrence, nil
}
