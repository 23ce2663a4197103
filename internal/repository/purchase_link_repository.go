package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xavierau/event-platform-sub006/internal/database"
	"github.com/xavierau/event-platform-sub006/internal/model"
	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
)

type PurchaseLinkRepository interface {
	FindByID(ctx context.Context, id int) (*model.PurchaseLink, error)
	FindByCode(ctx context.Context, code string) (*model.PurchaseLink, error)
	ListByHoldID(ctx context.Context, holdID int) ([]*model.PurchaseLink, error)
	// MarkExpired 只把仍為 active 的過期 link 改為 expired
	MarkExpired(ctx context.Context, id int, now time.Time) error

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, link *model.PurchaseLink) (*model.PurchaseLink, error)
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int) (*model.PurchaseLink, error)
	FindByCodeWithLock(ctx context.Context, tx pgx.Tx, code string) (*model.PurchaseLink, error)
	Update(ctx context.Context, tx pgx.Tx, id int, params model.UpdatePurchaseLinkParams, now time.Time) (*model.PurchaseLink, error)
	Revoke(ctx context.Context, tx pgx.Tx, id int, revokedBy int, now time.Time) (bool, error)
	RevokeActiveByHoldID(ctx context.Context, tx pgx.Tx, holdID int, revokedBy int, now time.Time) (int64, error)
	IncrementPurchased(ctx context.Context, tx pgx.Tx, id int, quantity int, now time.Time) error
}

type PurchaseLinkRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewPurchaseLinkRepository(pool *pgxpool.Pool) PurchaseLinkRepository {
	return &PurchaseLinkRepositoryImpl{
		pool: pool,
	}
}

const purchaseLinkColumns = `id, uuid, ticket_hold_id, code, name, assigned_user_id,
	quantity_mode, quantity_limit, quantity_purchased, status, expires_at, revoked_at,
	revoked_by, notes, metadata, created_by, created_at, updated_at`

func scanPurchaseLink(row pgx.Row) (*model.PurchaseLink, error) {
	var link model.PurchaseLink
	err := row.Scan(
		&link.ID,
		&link.UUID,
		&link.TicketHoldID,
		&link.Code,
		&link.Name,
		&link.AssignedUserID,
		&link.QuantityMode,
		&link.QuantityLimit,
		&link.QuantityPurchased,
		&link.Status,
		&link.ExpiresAt,
		&link.RevokedAt,
		&link.RevokedBy,
		&link.Notes,
		&link.Metadata,
		&link.CreatedBy,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func linkNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrLinkNotFound
	}
	return err
}

// Create 在 savepoint 內插入，code 重複時外層交易仍可重試
func (r *PurchaseLinkRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, link *model.PurchaseLink) (*model.PurchaseLink, error) {
	query := `
		INSERT INTO purchase_links (
			uuid, ticket_hold_id, code, name, assigned_user_id, quantity_mode,
			quantity_limit, quantity_purchased, status, expires_at, notes, metadata,
			created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		RETURNING ` + purchaseLinkColumns

	metadata := link.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	savepoint, err := tx.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer savepoint.Rollback(ctx)

	created, err := scanPurchaseLink(savepoint.QueryRow(ctx, query,
		link.UUID, link.TicketHoldID, link.Code, link.Name, link.AssignedUserID, link.QuantityMode,
		link.QuantityLimit, link.QuantityPurchased, link.Status, link.ExpiresAt, link.Notes, metadata,
		link.CreatedBy, link.CreatedAt,
	))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.ErrDuplicateCode
		}
		return nil, fmt.Errorf("failed to create purchase link: %w", err)
	}

	if err := savepoint.Commit(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

func (r *PurchaseLinkRepositoryImpl) FindByID(ctx context.Context, id int) (*model.PurchaseLink, error) {
	query := `SELECT ` + purchaseLinkColumns + ` FROM purchase_links WHERE id = $1`

	link, err := scanPurchaseLink(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, linkNotFound(err)
	}
	return link, nil
}

func (r *PurchaseLinkRepositoryImpl) FindByCode(ctx context.Context, code string) (*model.PurchaseLink, error) {
	query := `SELECT ` + purchaseLinkColumns + ` FROM purchase_links WHERE code = $1`

	link, err := scanPurchaseLink(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		return nil, linkNotFound(err)
	}
	return link, nil
}

func (r *PurchaseLinkRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int) (*model.PurchaseLink, error) {
	query := `SELECT ` + purchaseLinkColumns + ` FROM purchase_links WHERE id = $1 FOR UPDATE`

	link, err := scanPurchaseLink(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, linkNotFound(err)
	}
	return link, nil
}

func (r *PurchaseLinkRepositoryImpl) FindByCodeWithLock(ctx context.Context, tx pgx.Tx, code string) (*model.PurchaseLink, error) {
	query := `SELECT ` + purchaseLinkColumns + ` FROM purchase_links WHERE code = $1 FOR UPDATE`

	link, err := scanPurchaseLink(tx.QueryRow(ctx, query, code))
	if err != nil {
		return nil, linkNotFound(err)
	}
	return link, nil
}

func (r *PurchaseLinkRepositoryImpl) ListByHoldID(ctx context.Context, holdID int) ([]*model.PurchaseLink, error) {
	query := `SELECT ` + purchaseLinkColumns + ` FROM purchase_links WHERE ticket_hold_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, holdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make([]*model.PurchaseLink, 0)
	for rows.Next() {
		link, err := scanPurchaseLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return links, nil
}

func (r *PurchaseLinkRepositoryImpl) Update(ctx context.Context, tx pgx.Tx, id int, params model.UpdatePurchaseLinkParams, now time.Time) (*model.PurchaseLink, error) {
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	if params.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *params.Name)
		argPos++
	}
	if params.ExpiresAt != nil {
		sets = append(sets, fmt.Sprintf("expires_at = $%d", argPos))
		args = append(args, *params.ExpiresAt)
		argPos++
	} else if params.ClearExpiresAt {
		sets = append(sets, "expires_at = NULL")
	}
	if params.Notes != nil {
		sets = append(sets, fmt.Sprintf("notes = $%d", argPos))
		args = append(args, *params.Notes)
		argPos++
	}
	if params.Metadata != nil {
		sets = append(sets, fmt.Sprintf("metadata = $%d", argPos))
		args = append(args, params.Metadata)
		argPos++
	}

	if len(sets) == 0 {
		return nil, apperrors.ErrInvalidInput
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, now)
	argPos++

	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE purchase_links
		SET %s
		WHERE id = $%d
		RETURNING `+purchaseLinkColumns, strings.Join(sets, ", "), argPos)

	link, err := scanPurchaseLink(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, linkNotFound(err)
	}

	return link, nil
}

// Revoke 回傳 false 代表 link 已不是 active，沒有任何變更
func (r *PurchaseLinkRepositoryImpl) Revoke(ctx context.Context, tx pgx.Tx, id int, revokedBy int, now time.Time) (bool, error) {
	query := `
		UPDATE purchase_links
		SET status = 'revoked', revoked_at = $1, revoked_by = $2, updated_at = $1
		WHERE id = $3 AND status = 'active'
	`

	result, err := tx.Exec(ctx, query, now, revokedBy, id)
	if err != nil {
		return false, err
	}

	return result.RowsAffected() > 0, nil
}

func (r *PurchaseLinkRepositoryImpl) RevokeActiveByHoldID(ctx context.Context, tx pgx.Tx, holdID int, revokedBy int, now time.Time) (int64, error) {
	query := `
		UPDATE purchase_links
		SET status = 'revoked', revoked_at = $1, revoked_by = $2, updated_at = $1
		WHERE ticket_hold_id = $3 AND status = 'active'
	`

	result, err := tx.Exec(ctx, query, now, revokedBy, holdID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke purchase links: %w", err)
	}

	return result.RowsAffected(), nil
}

// IncrementPurchased 條件式遞增；達到上限時同一個 UPDATE 內改為 exhausted
func (r *PurchaseLinkRepositoryImpl) IncrementPurchased(ctx context.Context, tx pgx.Tx, id int, quantity int, now time.Time) error {
	query := `
		UPDATE purchase_links
		SET quantity_purchased = quantity_purchased + $1,
		    status = CASE
		        WHEN quantity_limit IS NOT NULL AND quantity_purchased + $1 >= quantity_limit THEN 'exhausted'
		        ELSE status
		    END,
		    updated_at = $2
		WHERE id = $3
		  AND status = 'active'
		  AND (quantity_limit IS NULL OR quantity_purchased + $1 <= quantity_limit)
	`

	result, err := tx.Exec(ctx, query, quantity, now, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewLinkNotUsable("purchase link quota exceeded")
	}

	return nil
}

func (r *PurchaseLinkRepositoryImpl) MarkExpired(ctx context.Context, id int, now time.Time) error {
	query := `
		UPDATE purchase_links
		SET status = 'expired', updated_at = $1
		WHERE id = $2 AND status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1
	`

	_, err := r.pool.Exec(ctx, query, now, id)
	return err
}
