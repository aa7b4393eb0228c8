package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/config"
	"backend/internal/models"
	"backend/internal/payments"
)

// GetCheckoutSession prices the cart exactly like the cash path and requests
// a hosted payment session for that amount. The cart id, purchaser id,
// shipping address and coupon ride along as opaque metadata for the webhook.
func GetCheckoutSession(db *mongo.Database, pay *payments.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/checkout/:id"
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

		amountCents, err := checkoutAmountCents(cart)
		if err != nil {
			respondError(c, err)
			return
		}

		shippingAddress, err := json.Marshal(shippingAddressFromQuery(c))
		if err != nil {
			respondError(c, errInternal("metadata encoding failed", err))
			return
		}

		url, err := pay.CreateCheckoutSession(payments.SessionRequest{
			AmountCents:       amountCents,
			Currency:          "usd",
			CustomerEmail:     user.Email,
			ClientReferenceID: cartID.Hex(),
			SuccessURL:        config.AppEnv.BaseURL + "/orders",
			CancelURL:         config.AppEnv.BaseURL + "/cart",
			ItemName:          user.Name,
			Metadata: map[string]string{
				"cartId":          cartID.Hex(),
				"userId":          user.ID.Hex(),
				"coupon":          cart.Coupon,
				"shippingAddress": string(shippingAddress),
			},
		})
		if err != nil {
			respondError(c, errInternal("payment session creation failed", err))
			return
		}

		log.Println("[CHECKOUT] [INFO] session created for cart:", cartID.Hex())
		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"session": gin.H{
				"url": url,
			},
		})
	}
}

// checkoutAmountCents prices the cart the same way the cash path does. An
// empty cart is rejected here, before any session is requested, so a
// zero-amount payment can never be started.
func checkoutAmountCents(cart models.Cart) (int64, error) {
	if len(cart.CartItems) == 0 {
		return 0, errBadRequest("cart is empty")
	}
	total := roundMoney(effectiveCartPrice(cart) + taxPrice + shippingPrice)
	return int64(math.Round(total * 100)), nil
}

func shippingAddressFromQuery(c *gin.Context) models.ShippingAddress {
	return models.ShippingAddress{
		Details:    strings.TrimSpace(c.Query("details")),
		Phone:      strings.TrimSpace(c.Query("phone")),
		City:       strings.TrimSpace(c.Query("city")),
		PostalCode: strings.TrimSpace(c.Query("postalCode")),
		Country:    strings.TrimSpace(c.Query("country")),
	}
}

// PaymentWebhook consumes the provider's signed callback. Verification
// failure fails the whole request; a completed checkout runs the same order
// creation as the cash path, with payment method "card" and isPaid set.
func PaymentWebhook(db *mongo.Database, pay *payments.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /webhook-checkout"
		defer handlePanic(c, route)

		payload, err := c.GetRawData()
		if err != nil {
			respondError(c, errBadRequest("invalid payload"))
			return
		}

		event, err := pay.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			log.Println("[CHECKOUT] [ERROR] webhook verification failed:", err)
			respondError(c, errBadRequest("webhook signature verification failed"))
			return
		}

		if event.Type != "checkout.session.completed" {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			respondError(c, errBadRequest("malformed checkout session"))
			return
		}

		if err := createCardOrder(c, db, session); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func createCardOrder(c *gin.Context, db *mongo.Database, session stripe.CheckoutSession) error {
	cartID, err := primitive.ObjectIDFromHex(session.ClientReferenceID)
	if err != nil {
		return errBadRequest("invalid cart reference")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var cart models.Cart
	if err := db.Collection("carts").FindOne(ctx, bson.M{"_id": cartID}).Decode(&cart); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return errNotFound("Cart not found")
		}
		return errInternal("db error", err)
	}

	user, err := resolvePurchaser(ctx, db, session)
	if err != nil {
		return err
	}

	var shippingAddress models.ShippingAddress
	if raw := session.Metadata["shippingAddress"]; raw != "" {
		// Best effort: a malformed address must not lose a paid order.
		if err := json.Unmarshal([]byte(raw), &shippingAddress); err != nil {
			log.Println("[CHECKOUT] [ERROR] shipping address metadata malformed:", err)
		}
	}

	order, err := createOrderFromCart(ctx, db, cart, user.ID, shippingAddress, models.PaymentMethodCard, true)
	if err != nil {
		return err
	}

	log.Println("[CHECKOUT] [INFO] card order created:", order.ID.Hex())
	return nil
}

// resolvePurchaser prefers the user id embedded at session creation; the
// provider-reported email is a weaker identity binding kept only as a
// fallback.
func resolvePurchaser(ctx context.Context, db *mongo.Database, session stripe.CheckoutSession) (models.User, error) {
	var user models.User

	if hex := session.Metadata["userId"]; hex != "" {
		if userID, err := primitive.ObjectIDFromHex(hex); err == nil {
			if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err == nil {
				return user, nil
			}
		}
	}

	email := strings.ToLower(strings.TrimSpace(session.CustomerEmail))
	if email == "" && session.CustomerDetails != nil {
		email = strings.ToLower(strings.TrimSpace(session.CustomerDetails.Email))
	}
	if email == "" {
		return models.User{}, errBadRequest("purchaser could not be resolved")
	}

	log.Println("[CHECKOUT] [WARN] resolving purchaser by provider-reported email")
	if err := db.Collection("users").FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, errNotFound("No user found for this payment")
		}
		return models.User{}, errInternal("db error", err)
	}
	return user, nil
}
