package pricing

import (
	"testing"

	"github.com/xavierau/event-platform-sub006/internal/model"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		mode     model.PricingMode
		original int
		custom   *int
		discount *float64
		want     int
	}{
		{"Original", model.PricingModeOriginal, 5000, nil, nil, 5000},
		{"Fixed", model.PricingModeFixed, 5000, intPtr(3000), nil, 3000},
		{"Fixed without custom price falls back", model.PricingModeFixed, 5000, nil, nil, 5000},
		{"Fixed above original", model.PricingModeFixed, 5000, intPtr(6000), nil, 6000},
		{"Percentage discount", model.PricingModePercentageDiscount, 5000, nil, floatPtr(20), 4000},
		{"Percentage discount rounds half up", model.PricingModePercentageDiscount, 999, nil, floatPtr(50), 500},
		{"Percentage discount clamps above 100", model.PricingModePercentageDiscount, 5000, nil, floatPtr(150), 0},
		{"Percentage discount clamps below 0", model.PricingModePercentageDiscount, 5000, nil, floatPtr(-10), 5000},
		{"Percentage discount missing", model.PricingModePercentageDiscount, 5000, nil, nil, 5000},
		{"Free", model.PricingModeFree, 5000, intPtr(100), floatPtr(10), 0},
		{"Unknown mode keeps original", model.PricingMode("bogus"), 5000, nil, nil, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(tt.mode, tt.original, tt.custom, tt.discount))
		})
	}
}

func TestNewQuote(t *testing.T) {
	t.Run("Discount", func(t *testing.T) {
		q := NewQuote(model.PricingModePercentageDiscount, 5000, nil, floatPtr(20))
		assert.Equal(t, 4000, q.UnitPrice)
		assert.Equal(t, 1000, q.Savings)
		assert.Equal(t, 20.0, q.SavingsPercentage)
		assert.False(t, q.IsFree)
	})

	t.Run("Free", func(t *testing.T) {
		q := NewQuote(model.PricingModeFree, 5000, nil, nil)
		assert.Equal(t, 0, q.UnitPrice)
		assert.Equal(t, 5000, q.Savings)
		assert.Equal(t, 100.0, q.SavingsPercentage)
		assert.True(t, q.IsFree)
	})

	t.Run("Fixed above original has no savings", func(t *testing.T) {
		q := NewQuote(model.PricingModeFixed, 5000, intPtr(6000), nil)
		assert.Equal(t, 0, q.Savings)
		assert.Equal(t, 0.0, q.SavingsPercentage)
	})

	t.Run("Savings percentage rounds to two decimals", func(t *testing.T) {
		q := NewQuote(model.PricingModeFixed, 3000, intPtr(2000), nil)
		assert.Equal(t, 33.33, q.SavingsPercentage)
	})

	t.Run("Zero original price", func(t *testing.T) {
		q := NewQuote(model.PricingModeOriginal, 0, nil, nil)
		assert.Equal(t, 0.0, q.SavingsPercentage)
		assert.True(t, q.IsFree)
	})
}

func TestOrderTotals(t *testing.T) {
	tickets := map[int]*model.TicketDefinition{
		1: {ID: 1, Name: "VIP", Price: 5000, Currency: "HKD"},
		2: {ID: 2, Name: "General", Price: 2000, Currency: "HKD"},
		3: {ID: 3, Name: "Student", Price: 1000, Currency: "HKD"},
	}
	allocations := AllocationIndex([]*model.HoldAllocation{
		{ID: 10, TicketDefinitionID: 1, PricingMode: model.PricingModePercentageDiscount, DiscountPercentage: floatPtr(20)},
		{ID: 11, TicketDefinitionID: 2, PricingMode: model.PricingModeFree},
	})

	items := []model.PurchaseItem{
		{TicketDefinitionID: 1, Quantity: 2},
		{TicketDefinitionID: 2, Quantity: 1},
		{TicketDefinitionID: 3, Quantity: 5}, // 不在 hold 內，略過
	}

	totals := OrderTotals(items, allocations, tickets)

	assert.Len(t, totals.Items, 2)
	assert.Equal(t, 8000, totals.Subtotal)
	assert.Equal(t, 2000+2000, totals.TotalSavings)
	assert.Equal(t, "HKD", totals.Currency)
	assert.Equal(t, 3, totals.TotalQuantity())
	assert.Equal(t, 4000, totals.Items[0].UnitPrice)
	assert.Equal(t, 8000, totals.Items[0].LineTotal)
	assert.True(t, totals.Items[1].IsFree)
}
