package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xavierau/event-platform-sub006/internal/model"
)

type BookingRepository interface {
	// SumReserved 不上鎖，給可用量快照使用
	SumReserved(ctx context.Context, ticketDefinitionID, eventOccurrenceID int) (int, error)
	ListByTransactionID(ctx context.Context, transactionID int) ([]*model.Booking, error)

	// Transaction methods
	SumReservedWithLock(ctx context.Context, tx pgx.Tx, ticketDefinitionID, eventOccurrenceID int) (int, error)
	Create(ctx context.Context, tx pgx.Tx, booking *model.Booking) (*model.Booking, error)
}

type BookingRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &BookingRepositoryImpl{
		pool: pool,
	}
}

const bookingColumns = `id, booking_number, qr_code_identifier, transaction_id, user_id,
	ticket_definition_id, event_id, event_occurrence_id, quantity, price_at_booking,
	currency, status, max_allowed_check_ins, created_at, updated_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	err := row.Scan(
		&booking.ID,
		&booking.BookingNumber,
		&booking.QRCodeIdentifier,
		&booking.TransactionID,
		&booking.UserID,
		&booking.TicketDefinitionID,
		&booking.EventID,
		&booking.EventOccurrenceID,
		&booking.Quantity,
		&booking.PriceAtBooking,
		&booking.Currency,
		&booking.Status,
		&booking.MaxAllowedCheckIns,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepositoryImpl) SumReserved(ctx context.Context, ticketDefinitionID, eventOccurrenceID int) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM bookings
		WHERE ticket_definition_id = $1
		  AND event_occurrence_id = $2
		  AND status IN ('confirmed', 'pending')
	`

	var total int
	if err := r.pool.QueryRow(ctx, query, ticketDefinitionID, eventOccurrenceID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// SumReservedWithLock 鎖住所有計入庫存的 booking，再加總
func (r *BookingRepositoryImpl) SumReservedWithLock(ctx context.Context, tx pgx.Tx, ticketDefinitionID, eventOccurrenceID int) (int, error) {
	query := `
		SELECT COALESCE(SUM(b.quantity), 0)
		FROM (
			SELECT quantity
			FROM bookings
			WHERE ticket_definition_id = $1
			  AND event_occurrence_id = $2
			  AND status IN ('confirmed', 'pending')
			FOR UPDATE
		) b
	`

	var total int
	if err := tx.QueryRow(ctx, query, ticketDefinitionID, eventOccurrenceID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum bookings: %w", err)
	}
	return total, nil
}

func (r *BookingRepositoryImpl) ListByTransactionID(ctx context.Context, transactionID int) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE transaction_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]*model.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *BookingRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, booking *model.Booking) (*model.Booking, error) {
	query := `
		INSERT INTO bookings (
			booking_number, qr_code_identifier, transaction_id, user_id,
			ticket_definition_id, event_id, event_occurrence_id, quantity,
			price_at_booking, currency, status, max_allowed_check_ins
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + bookingColumns

	created, err := scanBooking(tx.QueryRow(ctx, query,
		booking.BookingNumber, booking.QRCodeIdentifier, booking.TransactionID, booking.UserID,
		booking.TicketDefinitionID, booking.EventID, booking.EventOccurrenceID, booking.Quantity,
		booking.PriceAtBooking, booking.Currency, booking.Status, booking.MaxAllowedCheckIns,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return created, nil
}
