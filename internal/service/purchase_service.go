package service

import (
	"context"
	"sort"
	"strings"
	"time"

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
	paymentGatewayTicketHold = "ticket_hold"
	bookingNumberPrefix      = "BK-"
	maxCheckInsPerBooking    = 1
)

type PurchaseService interface {
	// Process 透過 purchase link 購票，全部成功或全部不寫入
	Process(ctx context.Context, req model.PurchaseRequest) (*model.PurchaseResult, error)
	// Quote 只計算金額，不上鎖也不寫入
	Quote(ctx context.Context, code string, items []model.PurchaseItem) (*model.OrderTotals, error)
}

type PurchaseServiceImpl struct {
	txManager             database.TxManager
	linkRepository        repository.PurchaseLinkRepository
	holdRepository        repository.TicketHoldRepository
	allocationRepository  repository.HoldAllocationRepository
	ticketRepository      repository.TicketDefinitionRepository
	occurrenceRepository  repository.EventOccurrenceRepository
	transactionRepository repository.TransactionRepository
	bookingRepository     repository.BookingRepository
	purchaseRepository    repository.PurchaseLinkPurchaseRepository
	accessRepository      repository.PurchaseLinkAccessRepository
	eventQueue            queue.EventQueue
	clock                 clock.Clock
}

func NewPurchaseService(
	txManager database.TxManager,
	linkRepository repository.PurchaseLinkRepository,
	holdRepository repository.TicketHoldRepository,
	allocationRepository repository.HoldAllocationRepository,
	ticketRepository repository.TicketDefinitionRepository,
	occurrenceRepository repository.EventOccurrenceRepository,
	transactionRepository repository.TransactionRepository,
	bookingRepository repository.BookingRepository,
	purchaseRepository repository.PurchaseLinkPurchaseRepository,
	accessRepository repository.PurchaseLinkAccessRepository,
	eventQueue queue.EventQueue,
	clk clock.Clock,
) PurchaseService {
	return &PurchaseServiceImpl{
		txManager:             txManager,
		linkRepository:        linkRepository,
		holdRepository:        holdRepository,
		allocationRepository:  allocationRepository,
		ticketRepository:      ticketRepository,
		occurrenceRepository:  occurrenceRepository,
		transactionRepository: transactionRepository,
		bookingRepository:     bookingRepository,
		purchaseRepository:    purchaseRepository,
		accessRepository:      accessRepository,
		eventQueue:            eventQueue,
		clock:                 clk,
	}
}

func (s *PurchaseServiceImpl) Process(ctx context.Context, req model.PurchaseRequest) (*model.PurchaseResult, error) {
	now := s.clock.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	items := model.MergeItems(req.Items)
	ticketIDs := itemTicketIDs(items)

	// 票種與場次是靜態資料，交易外讀取，避免交易中再佔用第二條連線
	preview, err := s.linkRepository.FindByCode(ctx, req.LinkCode)
	if err != nil {
		return nil, err
	}
	previewHold, err := s.holdRepository.FindByID(ctx, preview.TicketHoldID)
	if err != nil {
		return nil, err
	}
	occurrence, err := s.occurrenceRepository.FindByID(ctx, previewHold.EventOccurrenceID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.ticketRepository.FindByIDs(ctx, ticketIDs)
	if err != nil {
		return nil, err
	}

	var (
		result *model.PurchaseResult
		hold   *model.TicketHold
		linkID int
	)
	err = s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		// 1. 鎖 link
		link, err := s.linkRepository.FindByCodeWithLock(ctx, tx, req.LinkCode)
		if err != nil {
			return err
		}
		linkID = link.ID

		// 2. 讀 hold，鎖這次會用到的 allocations
		hold, err = s.holdRepository.FindByIDTx(ctx, tx, link.TicketHoldID)
		if err != nil {
			return err
		}
		link.Hold = hold

		allocations, err := s.allocationRepository.ListForPurchaseWithLock(ctx, tx, hold.ID, ticketIDs)
		if err != nil {
			return err
		}
		hold.Allocations = allocations

		// 3. link / hold / 使用者
		if err := checkLinkUsable(link, now); err != nil {
			return err
		}
		if !link.CanBeUsedByUser(req.UserID) {
			return apperrors.ErrUserNotAuthorizedForLink
		}

		// 4. 數量
		index := pricing.AllocationIndex(allocations)
		totalQuantity, err := checkItems(items, index, tickets)
		if err != nil {
			return err
		}
		if !link.AllowsQuantity(totalQuantity) {
			return apperrors.NewLinkNotUsable("only %d tickets remaining on this link", *link.RemainingQuantity())
		}

		// 5. 金額
		totals := pricing.OrderTotals(items, index, tickets)

		// 6. access 必須屬於這個 link 才記為轉換，否則購買紀錄不帶 access
		accessID, err := s.claimAccess(ctx, tx, req.AccessID, link.ID)
		if err != nil {
			return err
		}

		// 7. 交易紀錄
		metadata := map[string]interface{}{
			"source":           model.TransactionSourceTicketHold,
			"total_savings":    totals.TotalSavings,
			"purchase_link_id": link.ID,
			"ticket_hold_id":   hold.ID,
		}
		if req.CouponCode != nil && strings.TrimSpace(*req.CouponCode) != "" {
			metadata["coupon_code"] = strings.TrimSpace(*req.CouponCode)
		}

		transaction, err := s.transactionRepository.Create(ctx, tx, &model.Transaction{
			UserID:         req.UserID,
			TotalAmount:    totals.Subtotal,
			Currency:       totals.Currency,
			Status:         model.TransactionStatusConfirmed,
			PaymentGateway: paymentGatewayTicketHold,
			Metadata:       metadata,
		})
		if err != nil {
			return err
		}

		result = &model.PurchaseResult{
			Transaction: transaction,
			Bookings:    make([]*model.Booking, 0, totalQuantity),
			Purchases:   make([]*model.PurchaseLinkPurchase, 0, totalQuantity),
			Totals:      totals,
		}

		// 8. 每張票一筆 booking 與 purchase 紀錄
		for _, line := range totals.Items {
			ticket := tickets[line.TicketDefinitionID]
			for unit := 0; unit < line.Quantity; unit++ {
				booking, err := s.bookingRepository.Create(ctx, tx, &model.Booking{
					BookingNumber:      newBookingNumber(),
					QRCodeIdentifier:   uuid.New().String(),
					TransactionID:      transaction.ID,
					UserID:             req.UserID,
					TicketDefinitionID: line.TicketDefinitionID,
					EventID:            occurrence.EventID,
					EventOccurrenceID:  occurrence.ID,
					Quantity:           1,
					PriceAtBooking:     line.UnitPrice,
					Currency:           ticket.Currency,
					Status:             model.BookingStatusConfirmed,
					MaxAllowedCheckIns: maxCheckInsPerBooking,
				})
				if err != nil {
					return err
				}

				purchase, err := s.purchaseRepository.Create(ctx, tx, &model.PurchaseLinkPurchase{
					PurchaseLinkID:    link.ID,
					BookingID:         booking.ID,
					TransactionID:     transaction.ID,
					UserID:            req.UserID,
					AccessID:          accessID,
					QuantityPurchased: 1,
					UnitPrice:         line.UnitPrice,
					OriginalPrice:     line.OriginalPrice,
					Currency:          ticket.Currency,
				})
				if err != nil {
					return err
				}

				result.Bookings = append(result.Bookings, booking)
				result.Purchases = append(result.Purchases, purchase)
			}

			// 9. 每個票種遞增一次
			allocation := index[line.TicketDefinitionID]
			if err := s.allocationRepository.IncrementPurchased(ctx, tx, allocation.ID, line.Quantity, now); err != nil {
				return err
			}
			allocation.PurchasedQuantity += line.Quantity
		}

		// 10. link 總數遞增一次
		if err := s.linkRepository.IncrementPurchased(ctx, tx, link.ID, totalQuantity, now); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithComponent("purchase_service").Info("purchase completed",
		zap.Int("transaction_id", result.Transaction.ID),
		zap.Int("hold_id", hold.ID),
		zap.Int("quantity", result.Totals.TotalQuantity()),
		zap.Int("subtotal", result.Totals.Subtotal),
	)

	// 鎖都釋放之後才發佈
	event := model.NewDomainEvent(model.EventPurchaseCompleted, now, hold.EventOccurrenceID, ticketIDs)
	event.HoldID = &hold.ID
	event.PurchaseLinkID = &linkID
	event.TransactionID = &result.Transaction.ID
	event.Quantity = result.Totals.TotalQuantity()
	publishAfterCommit(ctx, s.eventQueue, event)

	return result, nil
}

func (s *PurchaseServiceImpl) Quote(ctx context.Context, code string, items []model.PurchaseItem) (*model.OrderTotals, error) {
	if err := model.ValidateItems(items); err != nil {
		return nil, err
	}
	items = model.MergeItems(items)

	link, err := s.linkRepository.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	allocations, err := s.allocationRepository.ListByHoldID(ctx, link.TicketHoldID)
	if err != nil {
		return nil, err
	}

	tickets, err := s.ticketRepository.FindByIDs(ctx, itemTicketIDs(items))
	if err != nil {
		return nil, err
	}

	totals := pricing.OrderTotals(items, pricing.AllocationIndex(allocations), tickets)
	return &totals, nil
}

// checkLinkUsable 依序檢查 link 狀態、過期、額度，最後才是 hold
func checkLinkUsable(link *model.PurchaseLink, now time.Time) error {
	switch link.Status {
	case model.LinkStatusActive:
	case model.LinkStatusExpired:
		return apperrors.NewLinkNotUsable("this link has expired")
	case model.LinkStatusExhausted:
		return apperrors.NewLinkNotUsable("this link has been fully used")
	default:
		return apperrors.NewLinkNotUsable("this link is %s", link.Status)
	}

	if link.IsExpired(now) {
		return apperrors.NewLinkNotUsable("this link has expired")
	}
	if link.IsExhausted() {
		return apperrors.NewLinkNotUsable("this link has been fully used")
	}
	if link.Hold == nil || !link.Hold.IsUsable(now) {
		return apperrors.ErrHoldNotActive
	}
	return nil
}

// checkItems 回傳總數量；allocation 不存在或剩餘不足時失敗
func checkItems(items []model.PurchaseItem, allocations map[int]*model.HoldAllocation, tickets map[int]*model.TicketDefinition) (int, error) {
	total := 0
	for _, item := range items {
		name := ""
		if ticket, ok := tickets[item.TicketDefinitionID]; ok {
			name = ticket.Name
		}

		allocation, ok := allocations[item.TicketDefinitionID]
		if !ok {
			return 0, &apperrors.InsufficientHoldInventoryError{
				TicketDefinitionID: item.TicketDefinitionID,
				TicketName:         name,
				Requested:          item.Quantity,
				Available:          0,
			}
		}
		if !allocation.CanPurchase(item.Quantity) {
			return 0, &apperrors.InsufficientHoldInventoryError{
				TicketDefinitionID: item.TicketDefinitionID,
				TicketName:         name,
				Requested:          item.Quantity,
				Available:          allocation.RemainingQuantity(),
			}
		}
		if _, ok := tickets[item.TicketDefinitionID]; !ok {
			return 0, apperrors.ErrTicketDefinitionNotFound
		}
		total += item.Quantity
	}
	return total, nil
}

func itemTicketIDs(items []model.PurchaseItem) []int {
	ids := make([]int, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.TicketDefinitionID)
	}
	sort.Ints(ids)
	return ids
}

// claimAccess 在寫入購買紀錄之前標記 access，不存在或屬於其他 link 時回傳 nil
func (s *PurchaseServiceImpl) claimAccess(ctx context.Context, tx pgx.Tx, accessID *int, linkID int) (*int, error) {
	if accessID == nil {
		return nil, nil
	}

	marked, err := s.accessRepository.MarkResultedInPurchase(ctx, tx, *accessID, linkID)
	if err != nil {
		return nil, err
	}
	if !marked {
		logger.WithComponent("purchase_service").Warn("access does not belong to purchase link, ignoring",
			zap.Int("access_id", *accessID),
			zap.Int("link_id", linkID),
		)
		return nil, nil
	}
	return accessID, nil
}

func newBookingNumber() string {
	return bookingNumberPrefix + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:16])
}
