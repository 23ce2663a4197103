package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/repository"
	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
)

func TestHoldAllocationRepository_IncrementPurchased(t *testing.T) {
	repo := repository.NewHoldAllocationRepository(testDB)
	ctx := context.Background()

	t.Run("WithinAllocation", func(t *testing.T) {
		setupTestWithTruncate(t)
		f := createFixture(t, intPtr(100), 5)

		err := withTx(t, func(tx pgx.Tx) error {
			return repo.IncrementPurchased(ctx, tx, f.allocation.ID, 5, time.Now())
		})

		require.NoError(t, err)
		allocations, err := repo.ListByHoldID(ctx, f.hold.ID)
		require.NoError(t, err)
		require.Len(t, allocations, 1)
		assert.Equal(t, 5, allocations[0].PurchasedQuantity)
		assert.Equal(t, 0, allocations[0].RemainingQuantity())
	})

	t.Run("BeyondAllocationWritesNothing", func(t *testing.T) {
		setupTestWithTruncate(t)
		f := createFixture(t, intPtr(100), 5)

		err := withTx(t, func(tx pgx.Tx) error {
			if err := repo.IncrementPurchased(ctx, tx, f.allocation.ID, 4, time.Now()); err != nil {
				return err
			}
			return repo.IncrementPurchased(ctx, tx, f.allocation.ID, 2, time.Now())
		})

		assert.ErrorIs(t, err, apperrors.ErrInsufficientHoldInventory)
		allocations, err := repo.ListByHoldID(ctx, f.hold.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, allocations[0].PurchasedQuantity)
	})
}

func TestHoldAllocationRepository_SumHeld(t *testing.T) {
	repo := repository.NewHoldAllocationRepository(testDB)
	holdRepo := repository.NewTicketHoldRepository(testDB)
	ctx := context.Background()

	setupTestWithTruncate(t)
	f := createFixture(t, intPtr(100), 10)
	createHold(t, f.occurrence.ID, f.ticket.ID, 4)
	released, _ := createHold(t, f.occurrence.ID, f.ticket.ID, 7)
	require.NoError(t, withTx(t, func(tx pgx.Tx) error {
		if err := repo.IncrementPurchased(ctx, tx, f.allocation.ID, 3, time.Now()); err != nil {
			return err
		}
		_, err := holdRepo.Release(ctx, tx, released.ID, 1, time.Now())
		return err
	}))

	held, err := repo.SumHeld(ctx, f.ticket.ID, f.occurrence.ID)
	require.NoError(t, err)
	assert.Equal(t, 7+4, held)

	require.NoError(t, withTx(t, func(tx pgx.Tx) error {
		excluding, err := repo.SumHeldWithLock(ctx, tx, f.ticket.ID, f.occurrence.ID, &f.hold.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 4, excluding)

		all, err := repo.SumHeldWithLock(ctx, tx, f.ticket.ID, f.occurrence.ID, nil)
		if err != nil {
			return err
		}
		assert.Equal(t, 11, all)
		return nil
	}))

	held, err = repo.SumHeld(ctx, f.ticket.ID, f.occurrence.ID+1000)
	require.NoError(t, err)
	assert.Zero(t, held)
}

func TestHoldAllocationRepository_UpdateAndDelete(t *testing.T) {
	repo := repository.NewHoldAllocationRepository(testDB)
	ctx := context.Background()

	t.Run("UpdateBelowPurchasedRejected", func(t *testing.T) {
		setupTestWithTruncate(t)
		f := createFixture(t, intPtr(100), 10)
		require.NoError(t, withTx(t, func(tx pgx.Tx) error {
			return repo.IncrementPurchased(ctx, tx, f.allocation.ID, 3, time.Now())
		}))

		err := withTx(t, func(tx pgx.Tx) error {
			next := *f.allocation
			next.AllocatedQuantity = 2
			_, err := repo.Update(ctx, tx, &next, time.Now())
			return err
		})

		var inventoryErr *apperrors.InsufficientInventoryError
		assert.True(t, errors.As(err, &inventoryErr))
	})

	t.Run("UpdatePricing", func(t *testing.T) {
		setupTestWithTruncate(t)
		f := createFixture(t, intPtr(100), 10)

		var updated *model.HoldAllocation
		err := withTx(t, func(tx pgx.Tx) error {
			next := *f.allocation
			next.AllocatedQuantity = 12
			next.PricingMode = model.PricingModePercentageDiscount
			discount := 12.5
			next.DiscountPercentage = &discount
			var err error
			updated, err = repo.Update(ctx, tx, &next, time.Now())
			return err
		})

		require.NoError(t, err)
		assert.Equal(t, 12, updated.AllocatedQuantity)
		assert.Equal(t, model.PricingModePercentageDiscount, updated.PricingMode)
		assert.Equal(t, 12.5, *updated.DiscountPercentage)
	})

	t.Run("DeleteWithPurchasesRejected", func(t *testing.T) {
		setupTestWithTruncate(t)
		f := createFixture(t, intPtr(100), 10)
		require.NoError(t, withTx(t, func(tx pgx.Tx) error {
			return repo.IncrementPurchased(ctx, tx, f.allocation.ID, 1, time.Now())
		}))

		err := withTx(t, func(tx pgx.Tx) error {
			return repo.Delete(ctx, tx, f.allocation.ID)
		})

		assert.ErrorIs(t, err, apperrors.ErrAllocationHasPurchases)
	})

	t.Run("DeleteUnused", func(t *testing.T) {
		setupTestWithTruncate(t)
		f := createFixture(t, intPtr(100), 10)

		err := withTx(t, func(tx pgx.Tx) error {
			return repo.Delete(ctx, tx, f.allocation.ID)
		})

		require.NoError(t, err)
		allocations, err := repo.ListByHoldID(ctx, f.hold.ID)
		require.NoError(t, err)
		assert.Empty(t, allocations)
	})
}
