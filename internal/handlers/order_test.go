package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

func TestOrderItemsFromCartSnapshotsLines(t *testing.T) {
	product := primitive.NewObjectID()
	items := []models.CartItem{
		{Product: product, Quantity: 2, Color: "red", Price: 100},
		{Product: primitive.NewObjectID(), Quantity: 1, Price: 50},
	}

	snapshot := orderItemsFromCart(items)

	if len(snapshot) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(snapshot))
	}
	if snapshot[0].Product != product || snapshot[0].Quantity != 2 || snapshot[0].Price != 100 {
		t.Fatalf("first line not snapshotted correctly: %+v", snapshot[0])
	}
	if snapshot[0].Color != "red" {
		t.Fatalf("expected color to be carried over, got %q", snapshot[0].Color)
	}
}

func TestInventoryAdjustmentsOneWritePerLine(t *testing.T) {
	items := []models.CartItem{
		{Product: primitive.NewObjectID(), Quantity: 2},
		{Product: primitive.NewObjectID(), Quantity: 3},
	}

	writes := inventoryAdjustments(items)

	if len(writes) != len(items) {
		t.Fatalf("expected %d write models, got %d", len(items), len(writes))
	}

	for i, write := range writes {
		model, ok := write.(*mongo.UpdateOneModel)
		if !ok {
			t.Fatalf("write %d is not an UpdateOneModel", i)
		}
		update, ok := model.Update.(bson.M)
		if !ok {
			t.Fatalf("write %d update is not bson.M", i)
		}
		inc, ok := update["$inc"].(bson.M)
		if !ok {
			t.Fatalf("write %d has no $inc", i)
		}
		if inc["quantity"] != -items[i].Quantity {
			t.Fatalf("write %d: expected quantity decrement %d, got %v", i, -items[i].Quantity, inc["quantity"])
		}
		if inc["sold"] != items[i].Quantity {
			t.Fatalf("write %d: expected sold increment %d, got %v", i, items[i].Quantity, inc["sold"])
		}
	}
}

func TestInventoryAdjustmentsBalanceOut(t *testing.T) {
	items := []models.CartItem{
		{Product: primitive.NewObjectID(), Quantity: 2},
		{Product: primitive.NewObjectID(), Quantity: 1},
		{Product: primitive.NewObjectID(), Quantity: 4},
	}

	decrements, increments := 0, 0
	for _, write := range inventoryAdjustments(items) {
		inc := write.(*mongo.UpdateOneModel).Update.(bson.M)["$inc"].(bson.M)
		decrements -= inc["quantity"].(int)
		increments += inc["sold"].(int)
	}

	if decrements != increments {
		t.Fatalf("stock decrease %d does not match sold increase %d", decrements, increments)
	}
	if decrements != 7 {
		t.Fatalf("expected total adjustment 7, got %d", decrements)
	}
}

func TestOrderFlagUpdateForwardOnly(t *testing.T) {
	now := time.Now()

	cases := []struct {
		flagField string
		timeField string
	}{
		{"isPaid", "paidAt"},
		{"isDelivered", "deliveredAt"},
	}

	for _, tc := range cases {
		update := orderFlagUpdate(tc.flagField, tc.timeField, now)

		if len(update) != 1 {
			t.Fatalf("%s: expected a single $set operator, got %v", tc.flagField, update)
		}
		set, ok := update["$set"].(bson.M)
		if !ok {
			t.Fatalf("%s: update has no $set", tc.flagField)
		}
		if set[tc.flagField] != true {
			t.Fatalf("%s: flag must only ever be set to true, got %v", tc.flagField, set[tc.flagField])
		}
		if set[tc.timeField] != now {
			t.Fatalf("%s: expected %s to be stamped, got %v", tc.flagField, tc.timeField, set[tc.timeField])
		}
		if set["updatedAt"] != now {
			t.Fatalf("%s: expected updatedAt to be stamped, got %v", tc.flagField, set["updatedAt"])
		}
	}
}

func TestCreateOrderFromCartRejectsEmptyCart(t *testing.T) {
	_, err := createOrderFromCart(
		context.Background(), nil, models.Cart{},
		primitive.NewObjectID(), models.ShippingAddress{}, models.PaymentMethodCash, false,
	)

	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an apiError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected status 400 for an empty cart, got %d", apiErr.Status)
	}
}

func TestCashOrderTotalUsesDiscountedPrice(t *testing.T) {
	discounted := 210.0
	cart := models.Cart{
		TotalCartPrice:          250,
		TotalPriceAfterDiscount: &discounted,
		Coupon:                  "SUMMER20",
	}

	total := roundMoney(effectiveCartPrice(cart) + taxPrice + shippingPrice)

	if total != 210 {
		t.Fatalf("expected order total 210 with zero tax and shipping, got %v", total)
	}
}
