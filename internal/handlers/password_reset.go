package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"backend/internal/config"
	"backend/internal/mail"
	"backend/internal/models"
)

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyResetCodeRequest struct {
	ResetCode string `json:"resetCode" binding:"required"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// ForgotPassword generates a short-lived numeric reset code, stores only its
// hash and emails the plaintext code. If the mail cannot be sent the stored
// code is cleared again so no orphaned codes accumulate.
func ForgotPassword(db *mongo.Database, mailer *mail.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/forgot-password"
		defer handlePanic(c, route)

		var req forgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		email := normalizeEmail(req.Email)
		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("No user found with email %s", email))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		code, err := generateResetCode()
		if err != nil {
			respondError(c, errInternal("reset code generation failed", err))
			return
		}

		expires := time.Now().Add(config.AppEnv.ResetCodeTTL)
		verified := false
		_, err = db.Collection("users").UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
			"passwordResetCode":     hashResetCode(code),
			"passwordResetExpires":  expires,
			"passwordResetVerified": verified,
		}})
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		body := fmt.Sprintf(
			"Hi %s,\nWe received a request to reset your password.\nYour reset code: %s\nThe code is valid for %d minutes.",
			user.Name, code, int(config.AppEnv.ResetCodeTTL.Minutes()),
		)
		if err := mailer.Send(user.Email, "Your password reset code", body); err != nil {
			// Undo the code so a mail outage cannot leave a live secret behind.
			clearResetFields(db, user.ID)
			respondError(c, errInternal("There was an error sending the email", err))
			return
		}

		log.Println("[AUTH] [INFO] reset code sent to:", user.Email)
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Reset code sent to email",
		})
	}
}

// VerifyResetCode checks the submitted code against the stored hash and
// marks it usable for the final reset step.
func VerifyResetCode(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/verify-reset-code"
		defer handlePanic(c, route)

		var req verifyResetCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var user models.User
		err := db.Collection("users").FindOne(ctx, bson.M{
			"passwordResetCode":    hashResetCode(req.ResetCode),
			"passwordResetExpires": bson.M{"$gt": time.Now()},
		}).Decode(&user)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errBadRequest("Invalid or expired reset code"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		_, err = db.Collection("users").UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
			"passwordResetVerified": true,
		}})
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

// ResetPassword sets a new password once the code was verified. A successful
// reset invalidates all previously issued tokens via passwordChangedAt and
// logs the user straight in.
func ResetPassword(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/reset-password"
		defer handlePanic(c, route)

		var req resetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		email := normalizeEmail(req.Email)
		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondError(c, errNotFound("No user found with email %s", email))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}
		if user.PasswordResetVerified == nil || !*user.PasswordResetVerified {
			respondError(c, errBadRequest("Reset code not verified"))
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
		if err != nil {
			respondError(c, errInternal("password hashing failed", err))
			return
		}

		now := time.Now()
		_, err = db.Collection("users").UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
			"$set": bson.M{
				"password":          string(hash),
				"passwordChangedAt": now,
				"updatedAt":         now,
			},
			"$unset": bson.M{
				"passwordResetCode":     "",
				"passwordResetExpires":  "",
				"passwordResetVerified": "",
			},
		})
		if err != nil {
			respondError(c, errInternal("db error", err))
			return
		}

		token, err := issueToken(user.ID)
		if err != nil {
			respondError(c, errInternal("token generation failed", err))
			return
		}

		log.Println("[AUTH] [INFO] password reset for:", user.Email)
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

// generateResetCode returns a uniformly random 6-digit code.
func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashResetCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// clearResetFields runs on its own context: it fires after the mail send,
// which can outlive the request deadline when the SMTP host is unreachable.
func clearResetFields(db *mongo.Database, userID primitive.ObjectID) {
	ctx, cancel := rollbackContext()
	defer cancel()

	_, err := db.Collection("users").UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$unset": bson.M{
		"passwordResetCode":     "",
		"passwordResetExpires":  "",
		"passwordResetVerified": "",
	}})
	if err != nil {
		log.Println("[AUTH] [ERROR] failed to clear reset fields:", err)
	}
}
