package handlers

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/models"
)

// GetReviews lists reviews, scoped to a product on the nested route.
func GetReviews(db *mongo.Database) gin.HandlerFunc {
	return GetAll(db, reviewResource(), parentFilter("product"))
}

func GetReviewByID(db *mongo.Database) gin.HandlerFunc {
	return GetOne(db, reviewResource())
}

type createReviewRequest struct {
	Title  string  `json:"title"`
	Rating float64 `json:"rating" binding:"required,gte=1,lte=5"`
}

type updateReviewRequest struct {
	Title  string   `json:"title"`
	Rating *float64 `json:"rating" binding:"omitempty,gte=1,lte=5"`
}

// CreateReview adds the caller's review for the product in the route. The
// unique user+product index enforces one review per user.
func CreateReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products/:id/reviews"
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

		var req createReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
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

		now := time.Now()
		review := models.Review{
			Title:     strings.TrimSpace(req.Title),
			Rating:    req.Rating,
			User:      user.ID,
			Product:   productID,
			CreatedAt: now,
			UpdatedAt: now,
		}

		res, err := db.Collection("reviews").InsertOne(ctx, review)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondError(c, errBadRequest("You have already reviewed this product"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}
		review.ID = res.InsertedID.(primitive.ObjectID)

		if err := recalcProductRatings(ctx, db, productID); err != nil {
			log.Printf("[%s] rating aggregation failed for %s: %v", route, productID.Hex(), err)
		}

		c.JSON(http.StatusCreated, gin.H{
			"data":    review,
			"message": "Review created successfully",
		})
	}
}

// UpdateReview edits a review. Users may only touch their own; admins and
// managers may touch any.
func UpdateReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /reviews/:id"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		var req updateReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := bson.M{"updatedAt": time.Now()}
		if req.Title != "" {
			set["title"] = strings.TrimSpace(req.Title)
		}
		if req.Rating != nil {
			set["rating"] = *req.Rating
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		filter := bson.M{"_id": id}
		if user.Role == models.RoleUser {
			filter["user"] = user.ID
		}

		var review models.Review
		err = db.Collection("reviews").FindOneAndUpdate(
			ctx,
			filter,
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&review)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("Review not found"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		if err := recalcProductRatings(ctx, db, review.Product); err != nil {
			log.Printf("[%s] rating aggregation failed for %s: %v", route, review.Product.Hex(), err)
		}

		c.JSON(http.StatusOK, gin.H{
			"data":    review,
			"message": "Review updated successfully",
		})
	}
}

// DeleteReview removes a review under the same ownership rule as updates.
func DeleteReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /reviews/:id"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		filter := bson.M{"_id": id}
		if user.Role == models.RoleUser {
			filter["user"] = user.ID
		}

		var review models.Review
		if err := db.Collection("reviews").FindOneAndDelete(ctx, filter).Decode(&review); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("Review not found"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		if err := recalcProductRatings(ctx, db, review.Product); err != nil {
			log.Printf("[%s] rating aggregation failed for %s: %v", route, review.Product.Hex(), err)
		}

		c.Status(http.StatusNoContent)
	}
}

// recalcProductRatings recomputes the product's average rating and review
// count from the reviews collection. Zero reviews resets both fields.
func recalcProductRatings(ctx context.Context, db *mongo.Database, productID primitive.ObjectID) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product": productID}}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$product",
			"avg":      bson.M{"$avg": "$rating"},
			"quantity": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := db.Collection("reviews").Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	var results []struct {
		Avg      float64 `bson:"avg"`
		Quantity int64   `bson:"quantity"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return err
	}

	var avg float64
	var quantity int64
	if len(results) > 0 {
		avg = math.Round(results[0].Avg*10) / 10
		quantity = results[0].Quantity
	}

	_, err = db.Collection("products").UpdateOne(ctx, bson.M{"_id": productID}, bson.M{"$set": bson.M{
		"ratingsAverage":  avg,
		"ratingsQuantity": quantity,
	}})
	return err
}
