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

type PurchaseLinkAccessRepository interface {
	Create(ctx context.Context, access *model.PurchaseLinkAccess) (*model.PurchaseLinkAccess, error)
	FindByID(ctx context.Context, id int) (*model.PurchaseLinkAccess, error)
	Stats(ctx context.Context, linkID int) (*model.LinkAnalytics, error)

	// Transaction methods
	MarkResultedInPurchase(ctx context.Context, tx pgx.Tx, id int, linkID int) (bool, error)
}

type PurchaseLinkAccessRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewPurchaseLinkAccessRepository(pool *pgxpool.Pool) PurchaseLinkAccessRepository {
	return &PurchaseLinkAccessRepositoryImpl{
		pool: pool,
	}
}

const purchaseLinkAccessColumns = `id, purchase_link_id, user_id, ip_address, user_agent,
	referer, session_id, resulted_in_purchase, accessed_at`

func scanPurchaseLinkAccess(row pgx.Row) (*model.PurchaseLinkAccess, error) {
	var access model.PurchaseLinkAccess
	err := row.Scan(
		&access.ID,
		&access.PurchaseLinkID,
		&access.UserID,
		&access.IPAddress,
		&access.UserAgent,
		&access.Referer,
		&access.SessionID,
		&access.ResultedInPurchase,
		&access.AccessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &access, nil
}

func (r *PurchaseLinkAccessRepositoryImpl) Create(ctx context.Context, access *model.PurchaseLinkAccess) (*model.PurchaseLinkAccess, error) {
	query := `
		INSERT INTO purchase_link_accesses (
			purchase_link_id, user_id, ip_address, user_agent, referer, session_id, accessed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + purchaseLinkAccessColumns

	created, err := scanPurchaseLinkAccess(r.pool.QueryRow(ctx, query,
		access.PurchaseLinkID, access.UserID, access.IPAddress, access.UserAgent,
		access.Referer, access.SessionID, access.AccessedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to record purchase link access: %w", err)
	}

	return created, nil
}

func (r *PurchaseLinkAccessRepositoryImpl) FindByID(ctx context.Context, id int) (*model.PurchaseLinkAccess, error) {
	query := `SELECT ` + purchaseLinkAccessColumns + ` FROM purchase_link_accesses WHERE id = $1`

	access, err := scanPurchaseLinkAccess(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAccessNotFound
		}
		return nil, err
	}
	return access, nil
}

// Stats 回傳的 LinkAnalytics 只有 access 相關欄位
func (r *PurchaseLinkAccessRepositoryImpl) Stats(ctx context.Context, linkID int) (*model.LinkAnalytics, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(DISTINCT COALESCE(user_id::text, session_id, ip_address)),
		       COUNT(*) FILTER (WHERE resulted_in_purchase),
		       MAX(accessed_at)
		FROM purchase_link_accesses
		WHERE purchase_link_id = $1
	`

	stats := model.LinkAnalytics{PurchaseLinkID: linkID}
	err := r.pool.QueryRow(ctx, query, linkID).Scan(
		&stats.TotalAccesses,
		&stats.UniqueVisitors,
		&stats.ConvertedAccess,
		&stats.LastAccessedAt,
	)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// MarkResultedInPurchase access 不屬於該 link 時回傳 false
func (r *PurchaseLinkAccessRepositoryImpl) MarkResultedInPurchase(ctx context.Context, tx pgx.Tx, id int, linkID int) (bool, error) {
	query := `
		UPDATE purchase_link_accesses
		SET resulted_in_purchase = TRUE
		WHERE id = $1 AND purchase_link_id = $2
	`

	result, err := tx.Exec(ctx, query, id, linkID)
	if err != nil {
		return false, err
	}

	return result.RowsAffected() > 0, nil
}
