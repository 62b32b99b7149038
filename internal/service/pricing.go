package service

import (
	"fmt"
	"math"

	"basket-service/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals holds the derived prices of a basket
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

func lineTotal(line models.BasketLine) decimal.Decimal {
	return line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// CalculateTotals sums the lines and applies campaign discounts.
// The discount never exceeds the subtotal.
func CalculateTotals(lines []models.BasketLine, campaigns []models.Campaign) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(lineTotal(line))
	}

	discount := decimal.Zero
	for _, c := range campaigns {
		if c.DiscountPercentage.Valid {
			discount = discount.Add(subtotal.Mul(c.DiscountPercentage.Decimal).Div(hundred))
		}
		if c.DiscountAmount.Valid {
			discount = discount.Add(c.DiscountAmount.Decimal)
		}
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	discount = discount.Round(2)

	return Totals{
		Subtotal: subtotal.Round(2),
		Discount: discount,
		Total:    subtotal.Sub(discount).Round(2),
	}
}

// MaxQuantity bounds a line quantity and the basket product count,
// both stored in INTEGER columns.
const MaxQuantity = math.MaxInt32

func quantityTooLarge() *Error {
	return invalidField("quantity", fmt.Sprintf("Ensure this value is less than or equal to %d.", MaxQuantity))
}

// checkQuantityBound rejects setting line idx (-1 for a new line) to quantity
// when the line or the whole basket would exceed MaxQuantity.
func checkQuantityBound(lines []models.BasketLine, idx, quantity int) error {
	if quantity > MaxQuantity {
		return quantityTooLarge()
	}
	others := 0
	for i, line := range lines {
		if i != idx {
			others += line.Quantity
		}
	}
	if others+quantity > MaxQuantity {
		return quantityTooLarge()
	}
	return nil
}

func productCount(lines []models.BasketLine) int {
	n := 0
	for _, line := range lines {
		n += line.Quantity
	}
	return n
}

// findLine returns the index of the line with lineID, or -1
func findLine(lines []models.BasketLine, lineID string) int {
	for i := range lines {
		if lines[i].LineID == lineID {
			return i
		}
	}
	return -1
}

// findShopProductLine returns the index of the line holding shopProductID, or -1
func findShopProductLine(lines []models.BasketLine, shopProductID int64) int {
	for i := range lines {
		if lines[i].ShopProductID == shopProductID {
			return i
		}
	}
	return -1
}
