package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

// Flat app-wide charges added on top of the cart price. Kept as named values
// so a later pricing scheme only touches this spot.
const (
	taxPrice      = 0.0
	shippingPrice = 0.0
)

type createOrderRequest struct {
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
}

// CreateCashOrder converts the cart into a "cash" order: snapshot the lines,
// adjust inventory as one batch, then drop the cart.
func CreateCashOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		cartID, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		// The shipping address is optional; an absent body means none.
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, errBadRequest("invalid request body"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var cart models.Cart
		if err := db.Collection("carts").FindOne(ctx, bson.M{"_id": cartID}).Decode(&cart); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("Cart not found"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		order, err := createOrderFromCart(ctx, db, cart, user.ID, req.ShippingAddress, models.PaymentMethodCash, false)
		if err != nil {
			respondError(c, err)
			return
		}

		log.Println("[ORDER] [INFO] cash order created for user:", user.ID.Hex())
		c.JSON(http.StatusCreated, gin.H{
			"status": "success",
			"data":   order,
		})
	}
}

// createOrderFromCart is shared by the cash path and the payment webhook.
// Inventory is only touched after the order document exists, and the cart is
// only deleted after inventory was adjusted, so a failed creation leaves
// both untouched.
func createOrderFromCart(
	ctx context.Context,
	db *mongo.Database,
	cart models.Cart,
	userID primitive.ObjectID,
	shippingAddress models.ShippingAddress,
	paymentMethod string,
	paid bool,
) (models.Order, error) {
	if len(cart.CartItems) == 0 {
		return models.Order{}, errBadRequest("cart is empty")
	}

	now := time.Now()
	order := models.Order{
		User:            userID,
		OrderItems:      orderItemsFromCart(cart.CartItems),
		ShippingAddress: shippingAddress,
		TaxPrice:        taxPrice,
		ShippingPrice:   shippingPrice,
		TotalOrderPrice: roundMoney(effectiveCartPrice(cart) + taxPrice + shippingPrice),
		Coupon:          cart.Coupon,
		PaymentMethod:   paymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if paid {
		order.IsPaid = true
		order.PaidAt = &now
	}

	res, err := db.Collection("orders").InsertOne(ctx, order)
	if err != nil {
		return models.Order{}, errInternal("order not created", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}

	// One batched write across all affected products: a partial loop failure
	// can never leave inventory half-adjusted for a created order.
	if _, err := db.Collection("products").BulkWrite(ctx, inventoryAdjustments(cart.CartItems)); err != nil {
		return models.Order{}, errInternal("inventory update failed", err)
	}

	if _, err := db.Collection("carts").DeleteOne(ctx, bson.M{"_id": cart.ID}); err != nil {
		return models.Order{}, errInternal("cart cleanup failed", err)
	}

	return order, nil
}

func orderItemsFromCart(items []models.CartItem) []models.OrderItem {
	snapshot := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		snapshot = append(snapshot, models.OrderItem{
			Product:  item.Product,
			Quantity: item.Quantity,
			Color:    item.Color,
			Price:    item.Price,
		})
	}
	return snapshot
}

// inventoryAdjustments builds the per-product stock decrement / sold
// increment models for one BulkWrite.
func inventoryAdjustments(items []models.CartItem) []mongo.WriteModel {
	writes := make([]mongo.WriteModel, 0, len(items))
	for _, item := range items {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": item.Product}).
			SetUpdate(bson.M{"$inc": bson.M{
				"quantity": -item.Quantity,
				"sold":     item.Quantity,
			}}))
	}
	return writes
}

// ownOrdersFilter restricts base-role users to their own orders; elevated
// roles see everything.
func ownOrdersFilter(c *gin.Context) (bson.M, error) {
	user, ok := currentUser(c)
	if !ok {
		return nil, errUnauthorized("unauthorized")
	}
	if user.Role == models.RoleUser {
		return bson.M{"user": user.ID}, nil
	}
	return bson.M{}, nil
}

func GetOrders(db *mongo.Database) gin.HandlerFunc {
	return GetAll(db, orderResource(), ownOrdersFilter)
}

func GetOrderByID(db *mongo.Database) gin.HandlerFunc {
	return GetOne(db, orderResource(), ownOrdersFilter)
}

// MarkOrderPaid flips the monotonic paid flag and stamps paidAt.
func MarkOrderPaid(db *mongo.Database) gin.HandlerFunc {
	return markOrderFlag(db, "isPaid", "paidAt")
}

// MarkOrderDelivered flips the monotonic delivered flag and stamps
// deliveredAt.
func MarkOrderDelivered(db *mongo.Database) gin.HandlerFunc {
	return markOrderFlag(db, "isDelivered", "deliveredAt")
}

func markOrderFlag(db *mongo.Database, flagField, timeField string) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := "PUT /orders/:id/" + flagField
		defer handlePanic(c, route)

		orderID, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection("orders").UpdateOne(ctx, bson.M{"_id": orderID}, orderFlagUpdate(flagField, timeField, time.Now()))
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}
		if res.MatchedCount == 0 {
			respondError(c, errNotFound("Order not found"))
			return
		}

		var order models.Order
		if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		log.Printf("[ORDER] [INFO] %s set for order %s", flagField, orderID.Hex())
		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   order,
		})
	}
}

// orderFlagUpdate builds the paid/delivered transition. It only ever sets the
// flag to true; there is no reverse transition.
func orderFlagUpdate(flagField, timeField string, now time.Time) bson.M {
	return bson.M{"$set": bson.M{
		flagField:   true,
		timeField:   now,
		"updatedAt": now,
	}}
}
