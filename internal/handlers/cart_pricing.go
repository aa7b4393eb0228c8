package handlers

import (
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/models"
)

func roundMoney(value float64) float64 {
	return math.Round(value*100) / 100
}

// recalcCartTotals restores the cart invariant: totalCartPrice equals the sum
// of price*quantity over the remaining items. Any previously applied coupon
// is cleared and must be re-applied explicitly.
func recalcCartTotals(cart *models.Cart) {
	total := 0.0
	for _, item := range cart.CartItems {
		total += item.Price * float64(item.Quantity)
	}
	cart.TotalCartPrice = roundMoney(total)
	cart.TotalPriceAfterDiscount = nil
	cart.Coupon = ""
}

// couponDiscount computes the absolute discount for a percentage coupon,
// honoring the optional cap and never exceeding the total itself.
func couponDiscount(total, discountPercent, maximumDiscountAmount float64) float64 {
	discount := total * discountPercent / 100
	if maximumDiscountAmount > 0 {
		discount = math.Min(discount, maximumDiscountAmount)
	}
	return math.Min(discount, total)
}

// findCartLine locates an existing line with the same product and color;
// such lines are merged instead of duplicated.
func findCartLine(items []models.CartItem, productID primitive.ObjectID, color string) int {
	for i, item := range items {
		if item.Product == productID && item.Color == color {
			return i
		}
	}
	return -1
}

func findCartItemByID(items []models.CartItem, itemID primitive.ObjectID) int {
	for i, item := range items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// effectiveCartPrice is the amount an order is charged: the discounted total
// when a coupon is applied, the plain total otherwise.
func effectiveCartPrice(cart models.Cart) float64 {
	if cart.Coupon != "" && cart.TotalPriceAfterDiscount != nil {
		return *cart.TotalPriceAfterDiscount
	}
	return cart.TotalCartPrice
}
