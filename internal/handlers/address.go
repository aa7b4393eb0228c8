package handlers

import (
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

type addAddressRequest struct {
	Alias      string `json:"alias" binding:"required"`
	Details    string `json:"details" binding:"required"`
	Phone      string `json:"phone"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// AddAddress appends a shipping address to the caller's address book.
func AddAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /addresses"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		var req addAddressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		address := models.Address{
			ID:         primitive.NewObjectID(),
			Alias:      strings.TrimSpace(req.Alias),
			Details:    strings.TrimSpace(req.Details),
			Phone:      strings.TrimSpace(req.Phone),
			City:       strings.TrimSpace(req.City),
			PostalCode: strings.TrimSpace(req.PostalCode),
			Country:    strings.TrimSpace(req.Country),
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		_, err := db.Collection("users").UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
			"$push": bson.M{"addresses": address},
			"$set":  bson.M{"updatedAt": time.Now()},
		})
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		log.Printf("[%s] %s added address %s", route, user.ID.Hex(), address.ID.Hex())
		c.JSON(http.StatusCreated, gin.H{
			"status":  "success",
			"message": "Address added successfully",
			"data":    address,
		})
	}
}

// RemoveAddress deletes one address entry by its id.
func RemoveAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /addresses/:id"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		addressID, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection("users").UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
			"$pull": bson.M{"addresses": bson.M{"id": addressID}},
			"$set":  bson.M{"updatedAt": time.Now()},
		})
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}
		if res.ModifiedCount == 0 {
			respondError(c, errNotFound("Address not found"))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Address removed successfully",
		})
	}
}

// GetAddresses lists the caller's stored addresses.
func GetAddresses() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /addresses"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		addresses := user.Addresses
		if addresses == nil {
			addresses = []models.Address{}
		}
		c.JSON(http.StatusOK, gin.H{
			"results": len(addresses),
			"data":    addresses,
		})
	}
}
