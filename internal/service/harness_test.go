package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xavierau/event-platform-sub006/internal/clock"
	"github.com/xavierau/event-platform-sub006/internal/model"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	store *memStore
	queue *recordingQueue
	cache *mapCache

	ticketRepo     *fakeTicketRepo
	occurrenceRepo *fakeOccurrenceRepo
	userRepo       *fakeUserRepo
	bookingRepo    *fakeBookingRepo
	holdRepo       *fakeHoldRepo
	allocationRepo *fakeAllocationRepo
	linkRepo       *fakeLinkRepo
	accessRepo     *fakeAccessRepo
	purchaseRepo   *fakePurchaseRepo

	txManager       *fakeTxManager
	transactionRepo *fakeTransactionRepo

	ledger    InventoryLedger
	holds     TicketHoldService
	links     PurchaseLinkService
	purchases PurchaseService
}

func newHarness(t *testing.T) *harness {
	return newHarnessAt(t, testNow)
}

func newHarnessAt(t *testing.T, now time.Time) *harness {
	t.Helper()

	store := newMemStore()
	h := &harness{
		store:          store,
		queue:          &recordingQueue{},
		cache:          newMapCache(),
		ticketRepo:     &fakeTicketRepo{s: store},
		occurrenceRepo: &fakeOccurrenceRepo{s: store},
		userRepo:       &fakeUserRepo{s: store},
		bookingRepo:    &fakeBookingRepo{s: store},
		holdRepo:       &fakeHoldRepo{s: store},
		allocationRepo: &fakeAllocationRepo{s: store},
		linkRepo:       &fakeLinkRepo{s: store},
		accessRepo:     &fakeAccessRepo{s: store},
		purchaseRepo:   &fakePurchaseRepo{s: store},
	}

	h.txManager = &fakeTxManager{store: store}
	h.transactionRepo = &fakeTransactionRepo{s: store}
	h.wire(now)

	return h
}

func (h *harness) wire(now time.Time) {
	clk := clock.NewFixed(now)
	h.ledger = NewInventoryLedger(h.ticketRepo, h.occurrenceRepo, h.bookingRepo, h.allocationRepo, h.cache)
	h.holds = NewTicketHoldService(h.txManager, h.holdRepo, h.allocationRepo, h.linkRepo, h.occurrenceRepo, h.ledger, h.queue, clk)
	h.links = NewPurchaseLinkService(h.txManager, h.linkRepo, h.holdRepo, h.allocationRepo, h.ticketRepo, h.userRepo, h.accessRepo, h.purchaseRepo, h.queue, clk)
	h.purchases = NewPurchaseService(h.txManager, h.linkRepo, h.holdRepo, h.allocationRepo, h.ticketRepo, h.occurrenceRepo, h.transactionRepo, h.bookingRepo, h.purchaseRepo, h.accessRepo, h.queue, clk)
}

// advance 共用同一份資料，只把時鐘往後撥
func (h *harness) advance(d time.Duration) *harness {
	later := *h
	later.wire(testNow.Add(d))
	return &later
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func (h *harness) seedTicket(t *testing.T, name string, price int, total *int) *model.TicketDefinition {
	t.Helper()
	ticket, err := h.ticketRepo.Create(context.Background(), &model.TicketDefinition{
		Name:          name,
		Price:         price,
		Currency:      "usd",
		TotalQuantity: total,
	})
	require.NoError(t, err)
	return ticket
}

func (h *harness) seedOccurrence(t *testing.T) *model.EventOccurrence {
	t.Helper()
	occurrence, err := h.occurrenceRepo.Create(context.Background(), &model.EventOccurrence{
		EventID:  1,
		Name:     "Opening night",
		StartsAt: testNow.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return occurrence
}

func (h *harness) seedUser(t *testing.T, name string) *model.User {
	t.Helper()
	user, err := h.userRepo.Create(context.Background(), &model.User{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return user
}

func (h *harness) seedBookings(ticketID, occurrenceID, quantity int, status model.BookingStatus) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	id := h.store.id()
	h.store.bookings = append(h.store.bookings, model.Booking{
		ID:                 id,
		BookingNumber:      fmt.Sprintf("SEED-%d", id),
		QRCodeIdentifier:   fmt.Sprintf("seed-%d", id),
		TicketDefinitionID: ticketID,
		EventOccurrenceID:  occurrenceID,
		Quantity:           quantity,
		Status:             status,
	})
}

func (h *harness) createHold(t *testing.T, occurrenceID int, allocations ...model.AllocationInput) *model.TicketHold {
	t.Helper()
	hold, err := h.holds.Create(context.Background(), model.CreateHoldRequest{
		EventOccurrenceID: occurrenceID,
		Name:              "Sponsor block",
		Allocations:       allocations,
	}, 1)
	require.NoError(t, err)
	return hold
}

func (h *harness) createLink(t *testing.T, holdID int, mode model.QuantityMode, limit *int, assigned *int) *model.PurchaseLink {
	t.Helper()
	link, err := h.links.Create(context.Background(), model.CreatePurchaseLinkRequest{
		TicketHoldID:   holdID,
		AssignedUserID: assigned,
		QuantityMode:   mode,
		QuantityLimit:  limit,
	}, 1)
	require.NoError(t, err)
	return link
}

func (h *harness) allocation(t *testing.T, holdID, ticketID int) model.HoldAllocation {
	t.Helper()
	allocations, err := h.allocationRepo.ListByHoldID(context.Background(), holdID)
	require.NoError(t, err)
	for _, a := range allocations {
		if a.TicketDefinitionID == ticketID {
			return *a
		}
	}
	t.Fatalf("allocation for ticket %d not found on hold %d", ticketID, holdID)
	return model.HoldAllocation{}
}

func (h *harness) link(t *testing.T, id int) model.PurchaseLink {
	t.Helper()
	link, err := h.linkRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return *link
}

func original(ticketID, quantity int) model.AllocationInput {
	return model.AllocationInput{TicketDefinitionID: ticketID, AllocatedQuantity: quantity, PricingMode: model.PricingModeOriginal}
}
