package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type applyCouponRequest struct {
	Coupon string `json:"coupon" binding:"required"`
}

func cartResponse(c *gin.Context, status int, cart models.Cart, message string) {
	c.JSON(status, gin.H{
		"status":        "success",
		"data":          cart,
		"numberOfItems": len(cart.CartItems),
		"message":       message,
	})
}

// GetCart returns the logged-in user's cart.
func GetCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /cart"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var cart models.Cart
		if err := db.Collection("carts").FindOne(ctx, bson.M{"user": user.ID}).Decode(&cart); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("There's no cart for this user"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		cartResponse(c, http.StatusOK, cart, "Cart retrieved successfully")
	}
}

// AddToCart adds a product line to the user's cart, creating the cart lazily
// on first add. An existing product+color line is merged by incrementing its
// quantity; the captured unit price is never refreshed.
func AddToCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		var req addToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondError(c, errBadRequest("invalid productId"))
			return
		}
		quantity := req.Quantity
		if quantity == 0 {
			quantity = 1
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var product models.Product
		if err := db.Collection("products").FindOne(ctx, bson.M{"_id": productID}).Decode(&product); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("Product not found"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		now := time.Now()
		var cart models.Cart
		err = db.Collection("carts").FindOne(ctx, bson.M{"user": user.ID}).Decode(&cart)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			cart = models.Cart{
				User: user.ID,
				CartItems: []models.CartItem{{
					ID:       primitive.NewObjectID(),
					Product:  productID,
					Quantity: quantity,
					Color:    req.Color,
					Price:    product.Price,
				}},
				CreatedAt: now,
			}
		case err != nil:
			respondError(c, errInternal("db error", err))
			return
		default:
			if i := findCartLine(cart.CartItems, productID, req.Color); i >= 0 {
				cart.CartItems[i].Quantity += quantity
			} else {
				cart.CartItems = append(cart.CartItems, models.CartItem{
					ID:       primitive.NewObjectID(),
					Product:  productID,
					Quantity: quantity,
					Color:    req.Color,
					Price:    product.Price,
				})
			}
		}

		recalcCartTotals(&cart)
		cart.UpdatedAt = now

		if err := saveCart(c, db, &cart); err != nil {
			respondError(c, err)
			return
		}

		log.Println("[CART] [INFO] product added to cart for user:", user.ID.Hex())
		cartResponse(c, http.StatusOK, cart, "Product added to cart successfully")
	}
}

// UpdateCartItemQuantity overwrites one line's quantity and recomputes
// totals.
func UpdateCartItemQuantity(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /cart/:id"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		itemID, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		var req updateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var cart models.Cart
		if err := db.Collection("carts").FindOne(ctx, bson.M{"user": user.ID}).Decode(&cart); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("There's no cart for this user"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		i := findCartItemByID(cart.CartItems, itemID)
		if i < 0 {
			respondError(c, errNotFound("Product not found in cart"))
			return
		}
		cart.CartItems[i].Quantity = req.Quantity

		recalcCartTotals(&cart)
		cart.UpdatedAt = time.Now()

		if err := saveCart(c, db, &cart); err != nil {
			respondError(c, err)
			return
		}

		cartResponse(c, http.StatusOK, cart, "Cart item quantity updated successfully")
	}
}

// RemoveCartItem drops one line from the cart and recomputes totals.
func RemoveCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart/:id"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		itemID, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var cart models.Cart
		if err := db.Collection("carts").FindOne(ctx, bson.M{"user": user.ID}).Decode(&cart); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("There's no cart for this user"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		if i := findCartItemByID(cart.CartItems, itemID); i >= 0 {
			cart.CartItems = append(cart.CartItems[:i], cart.CartItems[i+1:]...)
		}

		recalcCartTotals(&cart)
		cart.UpdatedAt = time.Now()

		if err := saveCart(c, db, &cart); err != nil {
			respondError(c, err)
			return
		}

		cartResponse(c, http.StatusOK, cart, "Product removed from cart successfully")
	}
}

// ClearCart deletes the whole cart document for the user.
func ClearCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if _, err := db.Collection("carts").DeleteOne(ctx, bson.M{"user": user.ID}); err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// ApplyCoupon applies an unexpired coupon by name: discount is the coupon
// percentage of the total, capped by the coupon's maximum discount amount,
// and the result is rounded to two decimals.
func ApplyCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /cart/apply-coupon"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		var req applyCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var coupon models.Coupon
		err := db.Collection("coupons").FindOne(ctx, bson.M{
			"name":     strings.ToUpper(strings.TrimSpace(req.Coupon)),
			"expireAt": bson.M{"$gt": time.Now()},
		}).Decode(&coupon)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("Invalid or Expired Coupon"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		var cart models.Cart
		if err := db.Collection("carts").FindOne(ctx, bson.M{"user": user.ID}).Decode(&cart); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("There's no cart for this user"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		discount := couponDiscount(cart.TotalCartPrice, coupon.Discount, coupon.MaximumDiscountAmount)
		discounted := roundMoney(cart.TotalCartPrice - discount)
		cart.TotalPriceAfterDiscount = &discounted
		cart.Coupon = coupon.Name
		cart.UpdatedAt = time.Now()

		if err := saveCart(c, db, &cart); err != nil {
			respondError(c, err)
			return
		}

		log.Println("[CART] [INFO] coupon applied:", coupon.Name)
		cartResponse(c, http.StatusOK, cart, "Coupon applied to cart successfully")
	}
}

// saveCart persists the full cart document read-modify-write style so the
// stored record is always the source of truth between requests.
func saveCart(c *gin.Context, db *mongo.Database, cart *models.Cart) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if cart.ID.IsZero() {
		res, err := db.Collection("carts").InsertOne(ctx, cart)
		if err != nil {
			return errInternal("db error", err)
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			cart.ID = id
		}
		return nil
	}

	if _, err := db.Collection("carts").ReplaceOne(ctx, bson.M{"_id": cart.ID}, cart); err != nil {
		return errInternal("db error", err)
	}
	return nil
}
