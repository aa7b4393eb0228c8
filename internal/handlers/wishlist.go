package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type wishlistRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

// AddToWishlist stores a product reference on the user; adding the same
// product twice is a no-op.
func AddToWishlist(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /wishlist"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		var req wishlistRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondError(c, errBadRequest("invalid product id"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if count, err := db.Collection("products").CountDocuments(ctx, bson.M{"_id": productID}); err != nil {
			respondError(c, errInternal("db error", err))
			return
		} else if count == 0 {
			respondError(c, errNotFound("Product not found"))
			return
		}

		_, err = db.Collection("users").UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
			"$addToSet": bson.M{"wishlist": productID},
			"$set":      bson.M{"updatedAt": time.Now()},
		})
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		log.Printf("[%s] %s added %s", route, user.ID.Hex(), productID.Hex())
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Product added to wishlist",
		})
	}
}

// RemoveFromWishlist drops a product reference; absent entries are ignored.
func RemoveFromWishlist(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /wishlist/:id"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		productID, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		_, err = db.Collection("users").UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
			"$pull": bson.M{"wishlist": productID},
			"$set":  bson.M{"updatedAt": time.Now()},
		})
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Product removed from wishlist",
		})
	}
}

// GetWishlist returns the caller's wishlist expanded to product documents.
func GetWishlist(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /wishlist"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		products := make([]bson.M, 0)
		if len(user.Wishlist) > 0 {
			cursor, err := db.Collection("products").Find(ctx, bson.M{"_id": bson.M{"$in": user.Wishlist}})
			if err != nil {
				respondError(c, errInternal("db error", err))
				return
			}
			if err := cursor.All(ctx, &products); err != nil {
				respondError(c, errInternal("decode error", err))
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"results": len(products),
			"data":    products,
		})
	}
}
