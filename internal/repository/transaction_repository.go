package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xavierau/event-platform-sub006/internal/model"
)

type TransactionRepository interface {
	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, transaction *model.Transaction) (*model.Transaction, error)
}

type TransactionRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) TransactionRepository {
	return &TransactionRepositoryImpl{
		pool: pool,
	}
}

func (r *TransactionRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, transaction *model.Transaction) (*model.Transaction, error) {
	query := `
		INSERT INTO transactions (user_id, total_amount, currency, status, payment_gateway, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, total_amount, currency, status, payment_gateway, metadata, created_at, updated_at
	`

	metadata := transaction.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	err := tx.QueryRow(ctx, query,
		transaction.UserID, transaction.TotalAmount, transaction.Currency,
		transaction.Status, transaction.PaymentGateway, metadata,
	).Scan(
		&transaction.ID,
		&transaction.UserID,
		&transaction.TotalAmount,
		&transaction.Currency,
		&transaction.Status,
		&transaction.PaymentGateway,
		&transaction.Metadata,
		&transaction.CreatedAt,
		&transaction.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return transaction, nil
}
