package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"backend/internal/mail"
	"backend/internal/models"
)

func GetUsers(db *mongo.Database) gin.HandlerFunc    { return GetAll(db, userResource()) }
func GetUserByID(db *mongo.Database) gin.HandlerFunc { return GetOne(db, userResource()) }
func UpdateUser(db *mongo.Database) gin.HandlerFunc  { return UpdateOne(db, userResource()) }

type createUserRequest struct {
	Name     string `json:"name" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=user manager admin"`
}

type changePasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// CreateUser is the admin-side account creation; unlike the generic create
// path it may assign a role and must hash the password.
func CreateUser(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /users"
		defer handlePanic(c, route)

		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			respondError(c, errInternal("password hashing failed", err))
			return
		}

		role := req.Role
		if role == "" {
			role = models.RoleUser
		}

		now := time.Now()
		user := models.User{
			Name:      strings.TrimSpace(req.Name),
			Slug:      slug.Make(req.Name),
			Email:     normalizeEmail(req.Email),
			Phone:     strings.TrimSpace(req.Phone),
			Password:  string(hash),
			Role:      role,
			IsActive:  true,
			Addresses: []models.Address{},
			CreatedAt: now,
			UpdatedAt: now,
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection("users").InsertOne(ctx, user)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondError(c, errBadRequest("Email already in use"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}
		user.ID = res.InsertedID.(primitive.ObjectID)

		log.Printf("[%s] created %s", route, user.ID.Hex())
		c.JSON(http.StatusCreated, gin.H{
			"data":    user,
			"message": "User created successfully",
		})
	}
}

// ChangeUserPassword is the admin-initiated reset. The user is notified by
// mail; if the notification cannot be sent the previous hash and timestamp
// are restored, and a failed restore is reported as its own, more severe
// condition because the account is then in an inconsistent state.
func ChangeUserPassword(db *mongo.Database, mailer *mail.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /users/:id/password"
		defer handlePanic(c, route)

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("User not found"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}
		previousHash := user.Password
		previousChangedAt := user.PasswordChangedAt

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
		if err != nil {
			respondError(c, errInternal("password hashing failed", err))
			return
		}

		now := time.Now()
		if err := setUserPassword(ctx, db, id, string(hash), &now); err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		body := fmt.Sprintf("Hi %s,\nYour account password was changed by an administrator. If you did not expect this, please contact support.", user.Name)
		if err := mailer.Send(user.Email, "Your password was changed", body); err != nil {
			// The mail send can outlast the request deadline; the restore
			// must not run on a context that already expired with it.
			restoreCtx, restoreCancel := rollbackContext()
			defer restoreCancel()
			if restoreErr := setUserPassword(restoreCtx, db, id, previousHash, previousChangedAt); restoreErr != nil {
				log.Printf("[%s] [SEVERE] password rollback failed for %s: %v", route, id.Hex(), restoreErr)
				respondError(c, errInternal("password changed but notification and rollback both failed; account state is inconsistent", restoreErr))
				return
			}
			respondError(c, errInternal("There was an error sending the email", err))
			return
		}

		log.Printf("[%s] password changed for %s", route, id.Hex())
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Password changed successfully",
		})
	}
}

func setUserPassword(ctx context.Context, db *mongo.Database, id primitive.ObjectID, hash string, changedAt *time.Time) error {
	set := bson.M{"password": hash, "updatedAt": time.Now()}
	update := bson.M{"$set": set}
	if changedAt != nil {
		set["passwordChangedAt"] = *changedAt
	} else {
		update["$unset"] = bson.M{"passwordChangedAt": ""}
	}
	_, err := db.Collection("users").UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// DeactivateUser soft-deletes an account; existing tokens die at the
// authentication gate's active check.
func DeactivateUser(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /users/:id"
		defer handlePanic(c, route)

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection("users").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
			"isActive":  false,
			"updatedAt": time.Now(),
		}})
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}
		if res.MatchedCount == 0 {
			respondError(c, errNotFound("User not found"))
			return
		}

		log.Printf("[%s] deactivated %s", route, id.Hex())
		c.Status(http.StatusNoContent)
	}
}

// GetMe returns the authenticated user's own profile.
func GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /users/me"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}
		user.ProfileImg = publicImageURL("users", user.ProfileImg)
		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}

type updateMeRequest struct {
	Name  string `json:"name" binding:"omitempty,min=2"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone"`
}

// UpdateMe lets a user edit their own profile fields. The password and role
// never travel through this path.
func UpdateMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /users/me"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		var req updateMeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := bson.M{"updatedAt": time.Now()}
		if req.Name != "" {
			set["name"] = strings.TrimSpace(req.Name)
			set["slug"] = slug.Make(req.Name)
		}
		if req.Email != "" {
			set["email"] = normalizeEmail(req.Email)
		}
		if req.Phone != "" {
			set["phone"] = strings.TrimSpace(req.Phone)
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var updated models.User
		err := db.Collection("users").FindOneAndUpdate(
			ctx,
			bson.M{"_id": user.ID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondError(c, errBadRequest("Email already in use"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		updated.ProfileImg = publicImageURL("users", updated.ProfileImg)
		c.JSON(http.StatusOK, gin.H{"data": updated})
	}
}

// UpdateMyPassword changes the caller's own password. The fresh token in the
// response is the only one that survives the staleness check afterwards.
func UpdateMyPassword(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /users/me/password"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
		if err != nil {
			respondError(c, errInternal("password hashing failed", err))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now()
		if err := setUserPassword(ctx, db, user.ID, string(hash), &now); err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		token, err := issueToken(user.ID)
		if err != nil {
			respondError(c, errInternal("token generation failed", err))
			return
		}

		log.Printf("[%s] password updated for %s", route, user.ID.Hex())
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

// DeactivateMe lets a user deactivate their own account.
func DeactivateMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /users/me"
		defer handlePanic(c, route)

		user, ok := currentUser(c)
		if !ok {
			respondError(c, errUnauthorized("unauthorized"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		_, err := db.Collection("users").UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
			"isActive":  false,
			"updatedAt": time.Now(),
		}})
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		log.Printf("[%s] deactivated %s", route, user.ID.Hex())
		c.Status(http.StatusNoContent)
	}
}
