package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/service"
)

var (
	_ service.TicketHoldService   = (*TicketHoldServiceMock)(nil)
	_ service.PurchaseLinkService = (*PurchaseLinkServiceMock)(nil)
	_ service.PurchaseService     = (*PurchaseServiceMock)(nil)
	_ service.InventoryLedger     = (*InventoryLedgerMock)(nil)
)

type TicketHoldServiceMock struct {
	mock.Mock
}

func NewTicketHoldServiceMock() *TicketHoldServiceMock {
	return &TicketHoldServiceMock{}
}

func (m *TicketHoldServiceMock) Create(ctx context.Context, req model.CreateHoldRequest, createdBy int) (*model.TicketHold, error) {
	args := m.Called(ctx, req, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TicketHold), args.Error(1)
}

func (m *TicketHoldServiceMock) Update(ctx context.Context, id uuid.UUID, req model.UpdateHoldRequest) (*model.TicketHold, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TicketHold), args.Error(1)
}

func (m *TicketHoldServiceMock) Release(ctx context.Context, id uuid.UUID, releasedBy int) (*model.TicketHold, error) {
	args := m.Called(ctx, id, releasedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TicketHold), args.Error(1)
}

func (m *TicketHoldServiceMock) GetByID(ctx context.Context, id int) (*model.TicketHold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TicketHold), args.Error(1)
}

func (m *TicketHoldServiceMock) GetByUUID(ctx context.Context, id uuid.UUID) (*model.TicketHold, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TicketHold), args.Error(1)
}

func (m *TicketHoldServiceMock) List(ctx context.Context, filter model.HoldFilter) ([]*model.TicketHold, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.TicketHold), args.Error(1)
}

type PurchaseLinkServiceMock struct {
	mock.Mock
}

func NewPurchaseLinkServiceMock() *PurchaseLinkServiceMock {
	return &PurchaseLinkServiceMock{}
}

func (m *PurchaseLinkServiceMock) Create(ctx context.Context, req model.CreatePurchaseLinkRequest, createdBy int) (*model.PurchaseLink, error) {
	args := m.Called(ctx, req, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseLink), args.Error(1)
}

func (m *PurchaseLinkServiceMock) Update(ctx context.Context, id int, req model.UpdatePurchaseLinkRequest) (*model.PurchaseLink, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseLink), args.Error(1)
}

func (m *PurchaseLinkServiceMock) Revoke(ctx context.Context, id int, revokedBy int) (*model.PurchaseLink, error) {
	args := m.Called(ctx, id, revokedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseLink), args.Error(1)
}

func (m *PurchaseLinkServiceMock) GetByID(ctx context.Context, id int) (*model.PurchaseLink, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseLink), args.Error(1)
}

func (m *PurchaseLinkServiceMock) ListByHold(ctx context.Context, holdID uuid.UUID) ([]*model.PurchaseLink, error) {
	args := m.Called(ctx, holdID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PurchaseLink), args.Error(1)
}

func (m *PurchaseLinkServiceMock) Resolve(ctx context.Context, code string) (*model.ResolvedLink, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ResolvedLink), args.Error(1)
}

func (m *PurchaseLinkServiceMock) RecordAccess(ctx context.Context, link *model.PurchaseLink, input model.AccessInput) (*model.PurchaseLinkAccess, error) {
	args := m.Called(ctx, link, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseLinkAccess), args.Error(1)
}

func (m *PurchaseLinkServiceMock) Show(ctx context.Context, code string, input model.AccessInput) (*model.PublicLinkResponse, error) {
	args := m.Called(ctx, code, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PublicLinkResponse), args.Error(1)
}

func (m *PurchaseLinkServiceMock) Analytics(ctx context.Context, id int) (*model.LinkAnalytics, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkAnalytics), args.Error(1)
}

type PurchaseServiceMock struct {
	mock.Mock
}

func NewPurchaseServiceMock() *PurchaseServiceMock {
	return &PurchaseServiceMock{}
}

func (m *PurchaseServiceMock) Process(ctx context.Context, req model.PurchaseRequest) (*model.PurchaseResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseResult), args.Error(1)
}

func (m *PurchaseServiceMock) Quote(ctx context.Context, code string, items []model.PurchaseItem) (*model.OrderTotals, error) {
	args := m.Called(ctx, code, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderTotals), args.Error(1)
}

type InventoryLedgerMock struct {
	mock.Mock
}

func NewInventoryLedgerMock() *InventoryLedgerMock {
	return &InventoryLedgerMock{}
}

func (m *InventoryLedgerMock) Check(ctx context.Context, tx pgx.Tx, query model.AvailabilityQuery) (*model.Availability, error) {
	args := m.Called(ctx, tx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Availability), args.Error(1)
}

func (m *InventoryLedgerMock) Snapshot(ctx context.Context, ticketDefinitionID, eventOccurrenceID int) (*model.Availability, error) {
	args := m.Called(ctx, ticketDefinitionID, eventOccurrenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Availability), args.Error(1)
}
