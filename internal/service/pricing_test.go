package service

import (
	"testing"

	"basket-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateTotals(t *testing.T) {
	lines := []models.BasketLine{
		{ShopProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		{ShopProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("5.50")},
	}

	totals := CalculateTotals(lines, nil)

	assert.True(t, decimal.RequireFromString("25.50").Equal(totals.Subtotal))
	assert.True(t, totals.Discount.IsZero())
	assert.True(t, decimal.RequireFromString("25.50").Equal(totals.Total))
}

func TestCalculateTotalsWithCampaigns(t *testing.T) {
	lines := []models.BasketLine{
		{ShopProductID: 1, Quantity: 4, UnitPrice: decimal.RequireFromString("25")},
	}

	tests := []struct {
		name      string
		campaigns []models.Campaign
		total     string
	}{
		{
			name: "percentage",
			campaigns: []models.Campaign{
				{DiscountPercentage: decimal.NewNullDecimal(decimal.NewFromInt(10))},
			},
			total: "90",
		},
		{
			name: "fixed amount",
			campaigns: []models.Campaign{
				{DiscountAmount: decimal.NewNullDecimal(decimal.RequireFromString("7.25"))},
			},
			total: "92.75",
		},
		{
			name: "stacked",
			campaigns: []models.Campaign{
				{DiscountPercentage: decimal.NewNullDecimal(decimal.NewFromInt(50))},
				{DiscountAmount: decimal.NewNullDecimal(decimal.NewFromInt(20))},
			},
			total: "30",
		},
		{
			name: "discount capped at subtotal",
			campaigns: []models.Campaign{
				{DiscountAmount: decimal.NewNullDecimal(decimal.NewFromInt(500))},
			},
			total: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := CalculateTotals(lines, tt.campaigns)
			assert.True(t, decimal.RequireFromString(tt.total).Equal(totals.Total),
				"expected %s, got %s", tt.total, totals.Total)
			assert.False(t, totals.Total.IsNegative())
		})
	}
}

func TestProductCount(t *testing.T) {
	assert.Equal(t, 0, productCount(nil))
	assert.Equal(t, 5, productCount([]models.BasketLine{{Quantity: 2}, {Quantity: 3}}))
}
