package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/queue"
	"github.com/xavierau/event-platform-sub006/internal/repository"
	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
)

var errInjected = errors.New("injected failure")

// memStore 記憶體版的資料表，模擬 PostgreSQL 的交易語意
type memStore struct {
	mu sync.Mutex

	nextID       int
	tickets      map[int]model.TicketDefinition
	occurrences  map[int]model.EventOccurrence
	users        map[int]model.User
	bookings     []model.Booking
	transactions []model.Transaction
	holds        map[int]model.TicketHold
	allocations  map[int]model.HoldAllocation
	links        map[int]model.PurchaseLink
	accesses     map[int]model.PurchaseLinkAccess
	purchases    []model.PurchaseLinkPurchase

	// 每次上鎖的紀錄，例如 "ticket:3"、"allocations:hold:7"；不隨交易回滾
	locks []string

	// 故障注入
	failBookingAt  int // 第 N 筆 booking 寫入失敗，0 代表不啟用
	bookingWrites  int
	duplicateCodes int // 前 N 次建立 link 回傳重複代碼
}

func newMemStore() *memStore {
	return &memStore{
		tickets:     map[int]model.TicketDefinition{},
		occurrences: map[int]model.EventOccurrence{},
		users:       map[int]model.User{},
		holds:       map[int]model.TicketHold{},
		allocations: map[int]model.HoldAllocation{},
		links:       map[int]model.PurchaseLink{},
		accesses:    map[int]model.PurchaseLinkAccess{},
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) lock(name string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = append(s.locks, name+":"+strconv.Itoa(id))
}

func (s *memStore) lockLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.locks...)
}

func (s *memStore) resetLocks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = nil
}

func (s *memStore) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &memStore{
		nextID:       s.nextID,
		tickets:      make(map[int]model.TicketDefinition, len(s.tickets)),
		occurrences:  make(map[int]model.EventOccurrence, len(s.occurrences)),
		users:        make(map[int]model.User, len(s.users)),
		bookings:     append([]model.Booking(nil), s.bookings...),
		transactions: append([]model.Transaction(nil), s.transactions...),
		holds:        make(map[int]model.TicketHold, len(s.holds)),
		allocations:  make(map[int]model.HoldAllocation, len(s.allocations)),
		links:        make(map[int]model.PurchaseLink, len(s.links)),
		accesses:     make(map[int]model.PurchaseLinkAccess, len(s.accesses)),
		purchases:    append([]model.PurchaseLinkPurchase(nil), s.purchases...),
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.occurrences {
		c.occurrences[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.holds {
		c.holds[k] = v
	}
	for k, v := range s.allocations {
		c.allocations[k] = v
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	for k, v := range s.accesses {
		c.accesses[k] = v
	}
	return c
}

// restore 回滾資料，但保留 id 序列與故障注入計數（和 PostgreSQL sequence 一樣不回滾）
func (s *memStore) restore(c *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickets = c.tickets
	s.occurrences = c.occurrences
	s.users = c.users
	s.bookings = c.bookings
	s.transactions = c.transactions
	s.holds = c.holds
	s.allocations = c.allocations
	s.links = c.links
	s.accesses = c.accesses
	s.purchases = c.purchases
}

// fakeTxManager 一次只允許一個交易，等同於所有列都被鎖住
type fakeTxManager struct {
	mu    sync.Mutex
	store *memStore
}

func (m *fakeTxManager) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	saved := m.store.snapshot()
	if err := fn(nil); err != nil {
		m.store.restore(saved)
		return err
	}
	return nil
}

// ---- ticket definitions / occurrences / users ----

type fakeTicketRepo struct{ s *memStore }

func (r *fakeTicketRepo) Create(_ context.Context, t *model.TicketDefinition) (*model.TicketDefinition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.id()
	r.s.tickets[t.ID] = *t
	out := *t
	return &out, nil
}

func (r *fakeTicketRepo) FindByID(_ context.Context, id int) (*model.TicketDefinition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, apperrors.ErrTicketDefinitionNotFound
	}
	return &t, nil
}

func (r *fakeTicketRepo) FindByIDs(_ context.Context, ids []int) (map[int]*model.TicketDefinition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int]*model.TicketDefinition, len(ids))
	for _, id := range ids {
		if t, ok := r.s.tickets[id]; ok {
			t := t
			out[id] = &t
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) FindByIDWithLock(ctx context.Context, _ pgx.Tx, id int) (*model.TicketDefinition, error) {
	r.s.lock("ticket", id)
	return r.FindByID(ctx, id)
}

type fakeOccurrenceRepo struct{ s *memStore }

func (r *fakeOccurrenceRepo) Create(_ context.Context, o *model.EventOccurrence) (*model.EventOccurrence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o.ID = r.s.id()
	r.s.occurrences[o.ID] = *o
	out := *o
	return &out, nil
}

func (r *fakeOccurrenceRepo) FindByID(_ context.Context, id int) (*model.EventOccurrence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.occurrences[id]
	if !ok {
		return nil, apperrors.ErrEventOccurrenceNotFound
	}
	return &o, nil
}

type fakeUserRepo struct{ s *memStore }

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.ID = r.s.id()
	r.s.users[u.ID] = *u
	out := *u
	return &out, nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id int) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &u, nil
}

// ---- bookings / transactions ----

type fakeBookingRepo struct{ s *memStore }

func (r *fakeBookingRepo) SumReserved(_ context.Context, ticketDefinitionID, eventOccurrenceID int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := 0
	for _, b := range r.s.bookings {
		if b.TicketDefinitionID == ticketDefinitionID && b.EventOccurrenceID == eventOccurrenceID && b.Status.CountsAgainstInventory() {
			total += b.Quantity
		}
	}
	return total, nil
}

func (r *fakeBookingRepo) ListByTransactionID(_ context.Context, transactionID int) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Booking, 0)
	for _, b := range r.s.bookings {
		if b.TransactionID == transactionID {
			b := b
			out = append(out, &b)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) SumReservedWithLock(ctx context.Context, _ pgx.Tx, ticketDefinitionID, eventOccurrenceID int) (int, error) {
	r.s.lock("bookings:ticket", ticketDefinitionID)
	return r.SumReserved(ctx, ticketDefinitionID, eventOccurrenceID)
}

func (r *fakeBookingRepo) Create(_ context.Context, _ pgx.Tx, b *model.Booking) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.bookingWrites++
	if r.s.failBookingAt > 0 && r.s.bookingWrites == r.s.failBookingAt {
		return nil, errInjected
	}
	for _, existing := range r.s.bookings {
		if existing.QRCodeIdentifier == b.QRCodeIdentifier || existing.BookingNumber == b.BookingNumber {
			return nil, errors.New("duplicate booking identifier")
		}
	}
	b.ID = r.s.id()
	r.s.bookings = append(r.s.bookings, *b)
	out := *b
	return &out, nil
}

type fakeTransactionRepo struct{ s *memStore }

func (r *fakeTransactionRepo) Create(_ context.Context, _ pgx.Tx, t *model.Transaction) (*model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.id()
	r.s.transactions = append(r.s.transactions, *t)
	out := *t
	return &out, nil
}

// ---- holds / allocations ----

type fakeHoldRepo struct{ s *memStore }

func (r *fakeHoldRepo) get(id int) (*model.TicketHold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.holds[id]
	if !ok {
		return nil, apperrors.ErrHoldNotFound
	}
	h.Allocations = nil
	return &h, nil
}

func (r *fakeHoldRepo) FindByID(_ context.Context, id int) (*model.TicketHold, error) {
	return r.get(id)
}

func (r *fakeHoldRepo) FindByUUID(_ context.Context, id uuid.UUID) (*model.TicketHold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, h := range r.s.holds {
		if h.UUID == id {
			h.Allocations = nil
			return &h, nil
		}
	}
	return nil, apperrors.ErrHoldNotFound
}

func (r *fakeHoldRepo) List(_ context.Context, filter model.HoldFilter) ([]*model.TicketHold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.TicketHold, 0)
	for _, h := range r.s.holds {
		if filter.EventOccurrenceID != nil && h.EventOccurrenceID != *filter.EventOccurrenceID {
			continue
		}
		if filter.OrganizerID != nil && (h.OrganizerID == nil || *h.OrganizerID != *filter.OrganizerID) {
			continue
		}
		if filter.Status != nil && h.Status != *filter.Status {
			continue
		}
		h := h
		h.Allocations = nil
		out = append(out, &h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeHoldRepo) Create(_ context.Context, _ pgx.Tx, h *model.TicketHold) (*model.TicketHold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h.ID = r.s.id()
	h.UpdatedAt = h.CreatedAt
	stored := *h
	stored.Allocations = nil
	r.s.holds[h.ID] = stored
	out := stored
	return &out, nil
}

func (r *fakeHoldRepo) FindByIDTx(_ context.Context, _ pgx.Tx, id int) (*model.TicketHold, error) {
	return r.get(id)
}

func (r *fakeHoldRepo) FindByIDWithLock(_ context.Context, _ pgx.Tx, id int) (*model.TicketHold, error) {
	return r.get(id)
}

func (r *fakeHoldRepo) Update(_ context.Context, _ pgx.Tx, id int, params model.UpdateHoldParams, now time.Time) (*model.TicketHold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.holds[id]
	if !ok {
		return nil, apperrors.ErrHoldNotFound
	}
	if params.Name != nil {
		h.Name = *params.Name
	}
	if params.Description != nil {
		h.Description = params.Description
	}
	if params.InternalNotes != nil {
		h.InternalNotes = params.InternalNotes
	}
	if params.ExpiresAt != nil {
		h.ExpiresAt = params.ExpiresAt
	}
	h.UpdatedAt = now
	r.s.holds[id] = h
	return &h, nil
}

func (r *fakeHoldRepo) Release(_ context.Context, _ pgx.Tx, id int, releasedBy int, now time.Time) (*model.TicketHold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.holds[id]
	if !ok || h.Status != model.HoldStatusActive {
		return nil, apperrors.ErrHoldNotActive
	}
	h.Status = model.HoldStatusReleased
	h.ReleasedAt = &now
	h.ReleasedBy = &releasedBy
	h.UpdatedAt = now
	r.s.holds[id] = h
	return &h, nil
}

type fakeAllocationRepo struct{ s *memStore }

func (r *fakeAllocationRepo) byHold(holdID int, ticketIDs map[int]bool) []*model.HoldAllocation {
	out := make([]*model.HoldAllocation, 0)
	for _, a := range r.s.allocations {
		if a.TicketHoldID != holdID {
			continue
		}
		if ticketIDs != nil && !ticketIDs[a.TicketDefinitionID] {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeAllocationRepo) ListByHoldID(_ context.Context, holdID int) ([]*model.HoldAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.byHold(holdID, nil), nil
}

func (r *fakeAllocationRepo) ListByHoldIDs(_ context.Context, holdIDs []int) (map[int][]*model.HoldAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int][]*model.HoldAllocation, len(holdIDs))
	for _, id := range holdIDs {
		out[id] = r.byHold(id, nil)
	}
	return out, nil
}

func (r *fakeAllocationRepo) sumHeld(ticketDefinitionID, eventOccurrenceID int, excludeHoldID *int) int {
	total := 0
	for _, a := range r.s.allocations {
		if a.TicketDefinitionID != ticketDefinitionID {
			continue
		}
		h := r.s.holds[a.TicketHoldID]
		if h.EventOccurrenceID != eventOccurrenceID || h.Status != model.HoldStatusActive {
			continue
		}
		if excludeHoldID != nil && h.ID == *excludeHoldID {
			continue
		}
		total += a.AllocatedQuantity - a.PurchasedQuantity
	}
	return total
}

func (r *fakeAllocationRepo) SumHeld(_ context.Context, ticketDefinitionID, eventOccurrenceID int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sumHeld(ticketDefinitionID, eventOccurrenceID, nil), nil
}

func (r *fakeAllocationRepo) ListByHoldIDWithLock(ctx context.Context, _ pgx.Tx, holdID int) ([]*model.HoldAllocation, error) {
	r.s.lock("allocations:hold", holdID)
	return r.ListByHoldID(ctx, holdID)
}

func (r *fakeAllocationRepo) ListForPurchaseWithLock(_ context.Context, _ pgx.Tx, holdID int, ticketDefinitionIDs []int) ([]*model.HoldAllocation, error) {
	r.s.lock("allocations:hold", holdID)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[int]bool, len(ticketDefinitionIDs))
	for _, id := range ticketDefinitionIDs {
		wanted[id] = true
	}
	return r.byHold(holdID, wanted), nil
}

func (r *fakeAllocationRepo) SumHeldWithLock(_ context.Context, _ pgx.Tx, ticketDefinitionID, eventOccurrenceID int, excludeHoldID *int) (int, error) {
	r.s.lock("held:ticket", ticketDefinitionID)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sumHeld(ticketDefinitionID, eventOccurrenceID, excludeHoldID), nil
}

func (r *fakeAllocationRepo) Create(_ context.Context, _ pgx.Tx, a *model.HoldAllocation) (*model.HoldAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.allocations {
		if existing.TicketHoldID == a.TicketHoldID && existing.TicketDefinitionID == a.TicketDefinitionID {
			return nil, errors.New("duplicate allocation")
		}
	}
	a.ID = r.s.id()
	r.s.allocations[a.ID] = *a
	out := *a
	return &out, nil
}

func (r *fakeAllocationRepo) Update(_ context.Context, _ pgx.Tx, a *model.HoldAllocation, now time.Time) (*model.HoldAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.allocations[a.ID]
	if !ok {
		return nil, errors.New("allocation not found")
	}
	if current.PurchasedQuantity > a.AllocatedQuantity {
		return nil, &apperrors.InsufficientInventoryError{
			TicketDefinitionID: a.TicketDefinitionID,
			Requested:          a.AllocatedQuantity,
			Purchased:          current.PurchasedQuantity,
		}
	}
	current.AllocatedQuantity = a.AllocatedQuantity
	current.PricingMode = a.PricingMode
	current.CustomPrice = a.CustomPrice
	current.DiscountPercentage = a.DiscountPercentage
	current.UpdatedAt = now
	r.s.allocations[a.ID] = current
	out := current
	return &out, nil
}

func (r *fakeAllocationRepo) Delete(_ context.Context, _ pgx.Tx, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.allocations[id]
	if !ok {
		return nil
	}
	if a.PurchasedQuantity > 0 {
		return apperrors.ErrAllocationHasPurchases
	}
	delete(r.s.allocations, id)
	return nil
}

func (r *fakeAllocationRepo) IncrementPurchased(_ context.Context, _ pgx.Tx, id int, quantity int, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.allocations[id]
	if !ok || a.PurchasedQuantity+quantity > a.AllocatedQuantity {
		return &apperrors.InsufficientHoldInventoryError{
			TicketDefinitionID: a.TicketDefinitionID,
			Requested:          quantity,
			Available:          a.AllocatedQuantity - a.PurchasedQuantity,
		}
	}
	a.PurchasedQuantity += quantity
	a.UpdatedAt = now
	r.s.allocations[id] = a
	return nil
}

// ---- purchase links ----

type fakeLinkRepo struct{ s *memStore }

func (r *fakeLinkRepo) get(id int) (*model.PurchaseLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok {
		return nil, apperrors.ErrLinkNotFound
	}
	return &l, nil
}

func (r *fakeLinkRepo) FindByID(_ context.Context, id int) (*model.PurchaseLink, error) {
	return r.get(id)
}

func (r *fakeLinkRepo) FindByCode(_ context.Context, code string) (*model.PurchaseLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.links {
		if l.Code == code {
			return &l, nil
		}
	}
	return nil, apperrors.ErrLinkNotFound
}

func (r *fakeLinkRepo) ListByHoldID(_ context.Context, holdID int) ([]*model.PurchaseLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.PurchaseLink, 0)
	for _, l := range r.s.links {
		if l.TicketHoldID == holdID {
			l := l
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeLinkRepo) MarkExpired(_ context.Context, id int, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if ok && l.Status == model.LinkStatusActive && l.IsExpired(now) {
		l.Status = model.LinkStatusExpired
		l.UpdatedAt = now
		r.s.links[id] = l
	}
	return nil
}

func (r *fakeLinkRepo) Create(_ context.Context, _ pgx.Tx, l *model.PurchaseLink) (*model.PurchaseLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.duplicateCodes > 0 {
		r.s.duplicateCodes--
		return nil, apperrors.ErrDuplicateCode
	}
	for _, existing := range r.s.links {
		if existing.Code == l.Code {
			return nil, apperrors.ErrDuplicateCode
		}
	}
	l.ID = r.s.id()
	l.UpdatedAt = l.CreatedAt
	stored := *l
	stored.Hold = nil
	r.s.links[l.ID] = stored
	out := stored
	return &out, nil
}

func (r *fakeLinkRepo) FindByIDWithLock(_ context.Context, _ pgx.Tx, id int) (*model.PurchaseLink, error) {
	return r.get(id)
}

func (r *fakeLinkRepo) FindByCodeWithLock(ctx context.Context, _ pgx.Tx, code string) (*model.PurchaseLink, error) {
	return r.FindByCode(ctx, code)
}

func (r *fakeLinkRepo) Update(_ context.Context, _ pgx.Tx, id int, params model.UpdatePurchaseLinkParams, now time.Time) (*model.PurchaseLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok {
		return nil, apperrors.ErrLinkNotFound
	}
	if params.Name != nil {
		l.Name = params.Name
	}
	if params.ExpiresAt != nil {
		l.ExpiresAt = params.ExpiresAt
	} else if params.ClearExpiresAt {
		l.ExpiresAt = nil
	}
	if params.Notes != nil {
		l.Notes = params.Notes
	}
	if params.Metadata != nil {
		l.Metadata = params.Metadata
	}
	l.UpdatedAt = now
	r.s.links[id] = l
	return &l, nil
}

func (r *fakeLinkRepo) Revoke(_ context.Context, _ pgx.Tx, id int, revokedBy int, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok || l.Status != model.LinkStatusActive {
		return false, nil
	}
	l.Status = model.LinkStatusRevoked
	l.RevokedAt = &now
	l.RevokedBy = &revokedBy
	l.UpdatedAt = now
	r.s.links[id] = l
	return true, nil
}

func (r *fakeLinkRepo) RevokeActiveByHoldID(_ context.Context, _ pgx.Tx, holdID int, revokedBy int, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, l := range r.s.links {
		if l.TicketHoldID != holdID || l.Status != model.LinkStatusActive {
			continue
		}
		l.Status = model.LinkStatusRevoked
		l.RevokedAt = &now
		l.RevokedBy = &revokedBy
		l.UpdatedAt = now
		r.s.links[id] = l
		n++
	}
	return n, nil
}

func (r *fakeLinkRepo) IncrementPurchased(_ context.Context, _ pgx.Tx, id int, quantity int, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok || l.Status != model.LinkStatusActive {
		return apperrors.NewLinkNotUsable("purchase link quota exceeded")
	}
	if l.QuantityLimit != nil && l.QuantityPurchased+quantity > *l.QuantityLimit {
		return apperrors.NewLinkNotUsable("purchase link quota exceeded")
	}
	l.QuantityPurchased += quantity
	if l.QuantityLimit != nil && l.QuantityPurchased >= *l.QuantityLimit {
		l.Status = model.LinkStatusExhausted
	}
	l.UpdatedAt = now
	r.s.links[id] = l
	return nil
}

// ---- accesses / purchases ----

type fakeAccessRepo struct{ s *memStore }

func (r *fakeAccessRepo) Create(_ context.Context, a *model.PurchaseLinkAccess) (*model.PurchaseLinkAccess, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = r.s.id()
	r.s.accesses[a.ID] = *a
	out := *a
	return &out, nil
}

func (r *fakeAccessRepo) FindByID(_ context.Context, id int) (*model.PurchaseLinkAccess, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accesses[id]
	if !ok {
		return nil, apperrors.ErrAccessNotFound
	}
	return &a, nil
}

func (r *fakeAccessRepo) Stats(_ context.Context, linkID int) (*model.LinkAnalytics, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := &model.LinkAnalytics{PurchaseLinkID: linkID}
	visitors := map[string]bool{}
	for _, a := range r.s.accesses {
		if a.PurchaseLinkID != linkID {
			continue
		}
		stats.TotalAccesses++
		if a.ResultedInPurchase {
			stats.ConvertedAccess++
		}
		switch {
		case a.UserID != nil:
			visitors["u"+strconv.Itoa(*a.UserID)] = true
		case a.SessionID != nil:
			visitors["s"+*a.SessionID] = true
		case a.IPAddress != nil:
			visitors["i"+*a.IPAddress] = true
		}
		accessed := a.AccessedAt
		if stats.LastAccessedAt == nil || accessed.After(*stats.LastAccessedAt) {
			stats.LastAccessedAt = &accessed
		}
	}
	stats.UniqueVisitors = len(visitors)
	return stats, nil
}

func (r *fakeAccessRepo) MarkResultedInPurchase(_ context.Context, _ pgx.Tx, id int, linkID int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accesses[id]
	if !ok || a.PurchaseLinkID != linkID {
		return false, nil
	}
	a.ResultedInPurchase = true
	r.s.accesses[id] = a
	return true, nil
}

type fakePurchaseRepo struct{ s *memStore }

func (r *fakePurchaseRepo) ListByLinkID(_ context.Context, linkID int) ([]*model.PurchaseLinkPurchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.PurchaseLinkPurchase, 0)
	for _, p := range r.s.purchases {
		if p.PurchaseLinkID == linkID {
			p := p
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *fakePurchaseRepo) Summary(_ context.Context, linkID int) (*repository.PurchaseSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	summary := &repository.PurchaseSummary{}
	for _, p := range r.s.purchases {
		if p.PurchaseLinkID != linkID {
			continue
		}
		summary.PurchasedUnits += p.QuantityPurchased
		summary.Revenue += p.UnitPrice * p.QuantityPurchased
		summary.TotalSavings += (p.OriginalPrice - p.UnitPrice) * p.QuantityPurchased
	}
	return summary, nil
}

func (r *fakePurchaseRepo) Create(_ context.Context, _ pgx.Tx, p *model.PurchaseLinkPurchase) (*model.PurchaseLinkPurchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.id()
	r.s.purchases = append(r.s.purchases, *p)
	out := *p
	return &out, nil
}

// ---- queue / cache ----

type recordingQueue struct {
	mu     sync.Mutex
	events []*model.DomainEvent
}

func (q *recordingQueue) Publish(_ context.Context, event *model.DomainEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return nil
}

func (q *recordingQueue) Subscribe(context.Context) (<-chan queue.Delivery, error) {
	return nil, nil
}

func (q *recordingQueue) Events() []*model.DomainEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*model.DomainEvent(nil), q.events...)
}

func (q *recordingQueue) Types() []model.EventType {
	types := make([]model.EventType, 0)
	for _, e := range q.Events() {
		types = append(types, e.Type)
	}
	return types
}

type mapCache struct {
	mu      sync.Mutex
	entries map[[2]int]model.Availability
	getErr  error
	gets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[[2]int]model.Availability{}}
}

func (c *mapCache) Get(_ context.Context, ticketDefinitionID, eventOccurrenceID int) (*model.Availability, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	a, ok := c.entries[[2]int{ticketDefinitionID, eventOccurrenceID}]
	if !ok {
		return nil, false, nil
	}
	return &a, true, nil
}

func (c *mapCache) Set(_ context.Context, a *model.Availability) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[[2]int{a.TicketDefinitionID, a.EventOccurrenceID}] = *a
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, ticketDefinitionIDs ...int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		for _, id := range ticketDefinitionIDs {
			if key[0] == id {
				delete(c.entries, key)
			}
		}
	}
	return nil
}
