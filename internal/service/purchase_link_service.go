package service

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/xavierau/event-platform-sub006/internal/clock"
	"github.com/xavierau/event-platform-sub006/internal/database"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/pricing"
	"github.com/xavierau/event-platform-sub006/internal/queue"
	"github.com/xavierau/event-platform-sub006/internal/repository"
	apperrors "github.com/xavierau/event-platform-sub006/pkg/app_errors"
	"github.com/xavierau/event-platform-sub006/pkg/logger"
	"go.uber.org/zap"
)

const (
	maxCodeAttempts    = 5
	maxUserAgentLength = 500
)

type PurchaseLinkService interface {
	Create(ctx context.Context, req model.CreatePurchaseLinkRequest, createdBy int) (*model.PurchaseLink, error)
	Update(ctx context.Context, id int, req model.UpdatePurchaseLinkRequest) (*model.PurchaseLink, error)
	// Revoke 只對 active link 生效，其他狀態原樣回傳
	Revoke(ctx context.Context, id int, revokedBy int) (*model.PurchaseLink, error)
	GetByID(ctx context.Context, id int) (*model.PurchaseLink, error)
	ListByHold(ctx context.Context, holdID uuid.UUID) ([]*model.PurchaseLink, error)
	// Resolve 以 code 取得 link、hold、allocations 與票種，順便把過期的 link 標記為 expired
	Resolve(ctx context.Context, code string) (*model.ResolvedLink, error)
	RecordAccess(ctx context.Context, link *model.PurchaseLink, input model.AccessInput) (*model.PurchaseLinkAccess, error)
	// Show 顧客開啟連結：解析、檢查使用者、記錄 access、組出價格表
	Show(ctx context.Context, code string, input model.AccessInput) (*model.PublicLinkResponse, error)
	Analytics(ctx context.Context, id int) (*model.LinkAnalytics, error)
}

type PurchaseLinkServiceImpl struct {
	txManager            database.TxManager
	linkRepository       repository.PurchaseLinkRepository
	holdRepository       repository.TicketHoldRepository
	allocationRepository repository.HoldAllocationRepository
	ticketRepository     repository.TicketDefinitionRepository
	userRepository       repository.UserRepository
	accessRepository     repository.PurchaseLinkAccessRepository
	purchaseRepository   repository.PurchaseLinkPurchaseRepository
	eventQueue           queue.EventQueue
	clock                clock.Clock
}

func NewPurchaseLinkService(
	txManager database.TxManager,
	linkRepository repository.PurchaseLinkRepository,
	holdRepository repository.TicketHoldRepository,
	allocationRepository repository.HoldAllocationRepository,
	ticketRepository repository.TicketDefinitionRepository,
	userRepository repository.UserRepository,
	accessRepository repository.PurchaseLinkAccessRepository,
	purchaseRepository repository.PurchaseLinkPurchaseRepository,
	eventQueue queue.EventQueue,
	clk clock.Clock,
) PurchaseLinkService {
	return &PurchaseLinkServiceImpl{
		txManager:            txManager,
		linkRepository:       linkRepository,
		holdRepository:       holdRepository,
		allocationRepository: allocationRepository,
		ticketRepository:     ticketRepository,
		userRepository:       userRepository,
		accessRepository:     accessRepository,
		purchaseRepository:   purchaseRepository,
		eventQueue:           eventQueue,
		clock:                clk,
	}
}

func (s *PurchaseLinkServiceImpl) Create(ctx context.Context, req model.CreatePurchaseLinkRequest, createdBy int) (*model.PurchaseLink, error) {
	now := s.clock.Now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	if req.AssignedUserID != nil {
		if _, err := s.userRepository.FindByID(ctx, *req.AssignedUserID); err != nil {
			return nil, err
		}
	}

	limit := req.QuantityLimit
	if !req.QuantityMode.IsLimited() {
		limit = nil
	}

	var created *model.PurchaseLink
	err := s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		hold, err := s.holdRepository.FindByIDWithLock(ctx, tx, req.TicketHoldID)
		if err != nil {
			return err
		}
		if !hold.IsUsable(now) {
			return apperrors.ErrHoldNotActive
		}

		for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
			link, err := s.linkRepository.Create(ctx, tx, &model.PurchaseLink{
				UUID:              uuid.New(),
				TicketHoldID:      hold.ID,
				Code:              GenerateLinkCode(),
				Name:              req.Name,
				AssignedUserID:    req.AssignedUserID,
				QuantityMode:      req.QuantityMode,
				QuantityLimit:     limit,
				QuantityPurchased: 0,
				Status:            model.LinkStatusActive,
				ExpiresAt:         req.ExpiresAt,
				Notes:             req.Notes,
				Metadata:          req.Metadata,
				CreatedBy:         createdBy,
				CreatedAt:         now,
			})
			if errors.Is(err, apperrors.ErrDuplicateCode) {
				logger.WithComponent("purchase_link_service").Warn("purchase link code collision, retrying", zap.Int("attempt", attempt))
				continue
			}
			if err != nil {
				return err
			}

			link.Hold = hold
			created = link
			return nil
		}

		return apperrors.ErrDuplicateCode
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (s *PurchaseLinkServiceImpl) Update(ctx context.Context, id int, req model.UpdatePurchaseLinkRequest) (*model.PurchaseLink, error) {
	now := s.clock.Now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	var updated *model.PurchaseLink
	err := s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		link, err := s.linkRepository.FindByIDWithLock(ctx, tx, id)
		if err != nil {
			return err
		}
		hold, err := s.holdRepository.FindByIDTx(ctx, tx, link.TicketHoldID)
		if err != nil {
			return err
		}
		link.Hold = hold

		// 已有銷售紀錄且不可用的 link 不能再修改條件
		if link.QuantityPurchased > 0 && !link.IsUsable(now) {
			return apperrors.NewLinkNotUsable("link has purchases and is no longer usable")
		}

		link, err = s.linkRepository.Update(ctx, tx, id, req.Params(), now)
		if err != nil {
			return err
		}

		link.Hold = hold
		updated = link
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *PurchaseLinkServiceImpl) Revoke(ctx context.Context, id int, revokedBy int) (*model.PurchaseLink, error) {
	now := s.clock.Now()

	var (
		result  *model.PurchaseLink
		changed bool
	)
	err := s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		link, err := s.linkRepository.FindByIDWithLock(ctx, tx, id)
		if err != nil {
			return err
		}
		hold, err := s.holdRepository.FindByIDTx(ctx, tx, link.TicketHoldID)
		if err != nil {
			return err
		}
		link.Hold = hold
		result = link

		if link.Status != model.LinkStatusActive {
			return nil
		}

		changed, err = s.linkRepository.Revoke(ctx, tx, link.ID, revokedBy, now)
		if err != nil {
			return err
		}
		if changed {
			link.Status = model.LinkStatusRevoked
			link.RevokedAt = &now
			link.RevokedBy = &revokedBy
			link.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		event := model.NewDomainEvent(model.EventLinkRevoked, now, result.Hold.EventOccurrenceID, nil)
		event.HoldID = &result.TicketHoldID
		event.PurchaseLinkID = &result.ID
		publishAfterCommit(ctx, s.eventQueue, event)
	}

	return result, nil
}

func (s *PurchaseLinkServiceImpl) GetByID(ctx context.Context, id int) (*model.PurchaseLink, error) {
	link, err := s.linkRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	hold, err := s.holdRepository.FindByID(ctx, link.TicketHoldID)
	if err != nil {
		return nil, err
	}
	link.Hold = hold

	return link, nil
}

func (s *PurchaseLinkServiceImpl) ListByHold(ctx context.Context, holdID uuid.UUID) ([]*model.PurchaseLink, error) {
	hold, err := s.holdRepository.FindByUUID(ctx, holdID)
	if err != nil {
		return nil, err
	}

	links, err := s.linkRepository.ListByHoldID(ctx, hold.ID)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		l.Hold = hold
	}

	return links, nil
}

func (s *PurchaseLinkServiceImpl) Resolve(ctx context.Context, code string) (*model.ResolvedLink, error) {
	now := s.clock.Now()

	link, err := s.linkRepository.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// 過期在讀取時才判斷，不用背景排程
	if link.Status == model.LinkStatusActive && link.IsExpired(now) {
		if err := s.linkRepository.MarkExpired(ctx, link.ID, now); err != nil {
			logger.WithComponent("purchase_link_service").Warn("failed to mark purchase link expired", zap.Int("link_id", link.ID), zap.Error(err))
		} else {
			link.Status = model.LinkStatusExpired
		}
	}

	hold, err := s.holdRepository.FindByID(ctx, link.TicketHoldID)
	if err != nil {
		return nil, err
	}
	hold.Allocations, err = s.allocationRepository.ListByHoldID(ctx, hold.ID)
	if err != nil {
		return nil, err
	}
	link.Hold = hold

	tickets, err := s.ticketRepository.FindByIDs(ctx, ticketDefinitionIDs(hold.Allocations))
	if err != nil {
		return nil, err
	}

	return &model.ResolvedLink{Link: link, Tickets: tickets}, nil
}

func (s *PurchaseLinkServiceImpl) RecordAccess(ctx context.Context, link *model.PurchaseLink, input model.AccessInput) (*model.PurchaseLinkAccess, error) {
	access := &model.PurchaseLinkAccess{
		PurchaseLinkID: link.ID,
		UserID:         input.UserID,
		IPAddress:      normalizeIP(input.IPAddress),
		UserAgent:      optionalString(truncate(input.UserAgent, maxUserAgentLength)),
		Referer:        optionalString(input.Referer),
		SessionID:      optionalString(input.SessionID),
		AccessedAt:     s.clock.Now(),
	}

	return s.accessRepository.Create(ctx, access)
}

func (s *PurchaseLinkServiceImpl) Show(ctx context.Context, code string, input model.AccessInput) (*model.PublicLinkResponse, error) {
	now := s.clock.Now()

	resolved, err := s.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	link := resolved.Link

	if !link.CanBeUsedByUser(input.UserID) {
		return nil, apperrors.ErrUserNotAuthorizedForLink
	}

	view := &model.PublicLinkResponse{
		Code:              link.Code,
		Name:              link.Name,
		HoldName:          link.Hold.Name,
		HoldDescription:   link.Hold.Description,
		EventOccurrenceID: link.Hold.EventOccurrenceID,
		ExpiresAt:         link.ExpiresAt,
		RemainingQuantity: link.RemainingQuantity(),
		IsUsable:          link.IsUsable(now),
		Tickets:           make([]model.LinkTicketRow, 0, len(link.Hold.Allocations)),
	}

	for _, a := range link.Hold.Allocations {
		ticket, ok := resolved.Tickets[a.TicketDefinitionID]
		if !ok {
			continue
		}
		quote := pricing.ForAllocation(a, ticket)
		view.Tickets = append(view.Tickets, model.LinkTicketRow{
			TicketDefinitionID: ticket.ID,
			TicketName:         ticket.Name,
			PricingMode:        a.PricingMode,
			UnitPrice:          quote.UnitPrice,
			OriginalPrice:      quote.OriginalPrice,
			Savings:            quote.Savings,
			SavingsPercentage:  quote.SavingsPercentage,
			IsFree:             quote.IsFree,
			RemainingQuantity:  a.RemainingQuantity(),
			Currency:           ticket.Currency,
		})
	}

	// access log 只用於分析，寫入失敗不擋顧客
	access, err := s.RecordAccess(ctx, link, input)
	if err != nil {
		logger.WithComponent("purchase_link_service").Warn("failed to record purchase link access", zap.Int("link_id", link.ID), zap.Error(err))
	} else {
		view.AccessID = &access.ID
	}

	return view, nil
}

func (s *PurchaseLinkServiceImpl) Analytics(ctx context.Context, id int) (*model.LinkAnalytics, error) {
	link, err := s.linkRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stats, err := s.accessRepository.Stats(ctx, link.ID)
	if err != nil {
		return nil, err
	}

	summary, err := s.purchaseRepository.Summary(ctx, link.ID)
	if err != nil {
		return nil, err
	}

	stats.PurchaseLinkID = link.ID
	stats.PurchasedUnits = summary.PurchasedUnits
	stats.Revenue = summary.Revenue
	stats.TotalSavings = summary.TotalSavings
	if stats.TotalAccesses > 0 {
		rate := float64(stats.ConvertedAccess) / float64(stats.TotalAccesses) * 100
		stats.ConversionRate = math.Round(rate*100) / 100
	}

	return stats, nil
}

// GenerateLinkCode 32 字元 hex，不含連字號
func GenerateLinkCode() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func normalizeIP(raw string) *string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return nil
	}
	normalized := ip.String()
	return &normalized
}

func truncate(value string, max int) string {
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	return string(runes[:max])
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
