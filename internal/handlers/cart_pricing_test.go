package handlers

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/models"
)

func TestRecalcCartTotalsSumsPriceTimesQuantity(t *testing.T) {
	cart := models.Cart{CartItems: []models.CartItem{
		{Price: 100, Quantity: 2},
		{Price: 50, Quantity: 1},
	}}

	recalcCartTotals(&cart)

	if cart.TotalCartPrice != 250 {
		t.Fatalf("expected total 250, got %v", cart.TotalCartPrice)
	}
}

func TestRecalcCartTotalsClearsAppliedCoupon(t *testing.T) {
	discounted := 210.0
	cart := models.Cart{
		CartItems:               []models.CartItem{{Price: 100, Quantity: 2}},
		TotalPriceAfterDiscount: &discounted,
		Coupon:                  "SUMMER20",
	}

	recalcCartTotals(&cart)

	if cart.TotalPriceAfterDiscount != nil {
		t.Fatal("expected discounted total to be cleared after mutation")
	}
	if cart.Coupon != "" {
		t.Fatalf("expected coupon to be cleared, got %q", cart.Coupon)
	}
}

func TestRecalcCartTotalsEmptyCart(t *testing.T) {
	cart := models.Cart{CartItems: nil}

	recalcCartTotals(&cart)

	if cart.TotalCartPrice != 0 {
		t.Fatalf("expected zero total for empty cart, got %v", cart.TotalCartPrice)
	}
}

func TestCouponDiscountRespectsMaximum(t *testing.T) {
	// 20% of 250 is 50, capped at 40.
	if got := couponDiscount(250, 20, 40); got != 40 {
		t.Fatalf("expected capped discount 40, got %v", got)
	}
}

func TestCouponDiscountUncappedWhenNoMaximum(t *testing.T) {
	if got := couponDiscount(250, 20, 0); got != 50 {
		t.Fatalf("expected discount 50, got %v", got)
	}
}

func TestCouponDiscountNeverExceedsTotal(t *testing.T) {
	if got := couponDiscount(30, 100, 0); got != 30 {
		t.Fatalf("expected discount clamped to total 30, got %v", got)
	}
	if got := couponDiscount(30, 120, 0); got != 30 {
		t.Fatalf("expected discount clamped to total 30, got %v", got)
	}
}

func TestApplyCouponScenarioTwoFiftyMinusForty(t *testing.T) {
	cart := models.Cart{CartItems: []models.CartItem{
		{Price: 100, Quantity: 2},
		{Price: 50, Quantity: 1},
	}}
	recalcCartTotals(&cart)

	discount := couponDiscount(cart.TotalCartPrice, 20, 40)
	after := roundMoney(cart.TotalCartPrice - discount)

	if after != 210.00 {
		t.Fatalf("expected 210.00 after coupon, got %v", after)
	}
}

func TestRoundMoneyTwoDecimals(t *testing.T) {
	if got := roundMoney(10.005); got != 10.01 {
		t.Fatalf("expected 10.01, got %v", got)
	}
	if got := roundMoney(10.004); got != 10.0 {
		t.Fatalf("expected 10.0, got %v", got)
	}
}

func TestFindCartLineMergesOnProductAndColor(t *testing.T) {
	product := primitive.NewObjectID()
	items := []models.CartItem{
		{Product: product, Color: "red"},
		{Product: product, Color: "blue"},
	}

	if idx := findCartLine(items, product, "blue"); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	if idx := findCartLine(items, product, "green"); idx != -1 {
		t.Fatalf("expected no match for new color, got %d", idx)
	}
	if idx := findCartLine(items, primitive.NewObjectID(), "red"); idx != -1 {
		t.Fatalf("expected no match for other product, got %d", idx)
	}
}

func TestEffectiveCartPricePrefersDiscountedTotal(t *testing.T) {
	discounted := 210.0
	cart := models.Cart{
		TotalCartPrice:          250,
		TotalPriceAfterDiscount: &discounted,
		Coupon:                  "SUMMER20",
	}

	if got := effectiveCartPrice(cart); got != 210 {
		t.Fatalf("expected discounted price 210, got %v", got)
	}

	cart.Coupon = ""
	cart.TotalPriceAfterDiscount = nil
	if got := effectiveCartPrice(cart); got != 250 {
		t.Fatalf("expected plain total 250, got %v", got)
	}
}
