package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xavierau/event-platform-sub006/internal/model"
)

// PurchaseSummary 某 link 的成交統計
type PurchaseSummary struct {
	PurchasedUnits int
	Revenue        int
	TotalSavings   int
}

type PurchaseLinkPurchaseRepository interface {
	ListByLinkID(ctx context.Context, linkID int) ([]*model.PurchaseLinkPurchase, error)
	Summary(ctx context.Context, linkID int) (*PurchaseSummary, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, purchase *model.PurchaseLinkPurchase) (*model.PurchaseLinkPurchase, error)
}

type PurchaseLinkPurchaseRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewPurchaseLinkPurchaseRepository(pool *pgxpool.Pool) PurchaseLinkPurchaseRepository {
	return &PurchaseLinkPurchaseRepositoryImpl{
		pool: pool,
	}
}

const purchaseLinkPurchaseColumns = `id, purchase_link_id, booking_id, transaction_id, user_id,
	access_id, quantity_purchased, unit_price, original_price, currency, created_at`

func scanPurchaseLinkPurchase(row pgx.Row) (*model.PurchaseLinkPurchase, error) {
	var purchase model.PurchaseLinkPurchase
	err := row.Scan(
		&purchase.ID,
		&purchase.PurchaseLinkID,
		&purchase.BookingID,
		&purchase.TransactionID,
		&purchase.UserID,
		&purchase.AccessID,
		&purchase.QuantityPurchased,
		&purchase.UnitPrice,
		&purchase.OriginalPrice,
		&purchase.Currency,
		&purchase.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *PurchaseLinkPurchaseRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, purchase *model.PurchaseLinkPurchase) (*model.PurchaseLinkPurchase, error) {
	query := `
		INSERT INTO purchase_link_purchases (
			purchase_link_id, booking_id, transaction_id, user_id, access_id,
			quantity_purchased, unit_price, original_price, currency
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + purchaseLinkPurchaseColumns

	created, err := scanPurchaseLinkPurchase(tx.QueryRow(ctx, query,
		purchase.PurchaseLinkID, purchase.BookingID, purchase.TransactionID, purchase.UserID,
		purchase.AccessID, purchase.QuantityPurchased, purchase.UnitPrice, purchase.OriginalPrice,
		purchase.Currency,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase link purchase: %w", err)
	}

	return created, nil
}

func (r *PurchaseLinkPurchaseRepositoryImpl) ListByLinkID(ctx context.Context, linkID int) ([]*model.PurchaseLinkPurchase, error) {
	query := `SELECT ` + purchaseLinkPurchaseColumns + ` FROM purchase_link_purchases WHERE purchase_link_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, linkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]*model.PurchaseLinkPurchase, 0)
	for rows.Next() {
		purchase, err := scanPurchaseLinkPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, purchase)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return purchases, nil
}

func (r *PurchaseLinkPurchaseRepositoryImpl) Summary(ctx context.Context, linkID int) (*PurchaseSummary, error) {
	query := `
		SELECT COALESCE(SUM(quantity_purchased), 0),
		       COALESCE(SUM(unit_price * quantity_purchased), 0),
		       COALESCE(SUM(GREATEST(original_price - unit_price, 0) * quantity_purchased), 0)
		FROM purchase_link_purchases
		WHERE purchase_link_id = $1
	`

	var summary PurchaseSummary
	err := r.pool.QueryRow(ctx, query, linkID).Scan(
		&summary.PurchasedUnits,
		&summary.Revenue,
		&summary.TotalSavings,
	)
	if err != nil {
		return nil, err
	}

	return &summary, nil
}
