// Package pricing maps an allocation's pricing mode and the ticket's base
// price to the unit price charged through a purchase link. Everything here is
// pure and works in integer cents.
package pricing

import (
	"math"

	"github.com/xavierau/event-platform-sub006/internal/model"
)

// Calculate 回傳實際單價（分）
func Calculate(mode model.PricingMode, originalPrice int, customPrice *int, discountPercentage *float64) int {
	switch mode {
	case model.PricingModeFixed:
		if customPrice != nil {
			return *customPrice
		}
		return originalPrice
	case model.PricingModePercentageDiscount:
		discount := 0.0
		if discountPercentage != nil {
			discount = clamp(*discountPercentage, 0, 100)
		}
		return roundHalfUp(float64(originalPrice) * (100 - discount) / 100)
	case model.PricingModeFree:
		return 0
	default:
		return originalPrice
	}
}

// Quote 單價與折扣資訊
type Quote struct {
	UnitPrice         int
	OriginalPrice     int
	Savings           int
	SavingsPercentage float64
	IsFree            bool
}

func NewQuote(mode model.PricingMode, originalPrice int, customPrice *int, discountPercentage *float64) Quote {
	unit := Calculate(mode, originalPrice, customPrice, discountPercentage)
	savings := originalPrice - unit
	if savings < 0 {
		savings = 0
	}

	percentage := 0.0
	if originalPrice > 0 {
		percentage = math.Round(float64(savings)/float64(originalPrice)*100*100) / 100
	}

	return Quote{
		UnitPrice:         unit,
		OriginalPrice:     originalPrice,
		Savings:           savings,
		SavingsPercentage: percentage,
		IsFree:            unit == 0,
	}
}

// ForAllocation 以 allocation 的定價規則計算該票種的報價
func ForAllocation(a *model.HoldAllocation, ticket *model.TicketDefinition) Quote {
	return NewQuote(a.PricingMode, ticket.Price, a.CustomPrice, a.DiscountPercentage)
}

// OrderTotals sums every item that has a matching allocation and ticket definition.
// Items without one contribute nothing; validating them is the caller's job.
func OrderTotals(items []model.PurchaseItem, allocations map[int]*model.HoldAllocation, tickets map[int]*model.TicketDefinition) model.OrderTotals {
	totals := model.OrderTotals{Items: make([]model.LineTotal, 0, len(items))}

	for _, item := range items {
		allocation, ok := allocations[item.TicketDefinitionID]
		if !ok {
			continue
		}
		ticket, ok := tickets[item.TicketDefinitionID]
		if !ok {
			continue
		}

		quote := ForAllocation(allocation, ticket)
		line := model.LineTotal{
			TicketDefinitionID: item.TicketDefinitionID,
			TicketName:         ticket.Name,
			Quantity:           item.Quantity,
			PricingMode:        allocation.PricingMode,
			UnitPrice:          quote.UnitPrice,
			OriginalPrice:      quote.OriginalPrice,
			LineTotal:          quote.UnitPrice * item.Quantity,
			Savings:            quote.Savings * item.Quantity,
			SavingsPercentage:  quote.SavingsPercentage,
			IsFree:             quote.IsFree,
		}

		totals.Items = append(totals.Items, line)
		totals.Subtotal += line.LineTotal
		totals.TotalSavings += line.Savings
		if totals.Currency == "" {
			totals.Currency = ticket.Currency
		}
	}

	return totals
}

// AllocationIndex 以票種 id 建立索引
func AllocationIndex(allocations []*model.HoldAllocation) map[int]*model.HoldAllocation {
	index := make(map[int]*model.HoldAllocation, len(allocations))
	for _, a := range allocations {
		index[a.TicketDefinitionID] = a
	}
	return index
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
