package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"backend/internal/config"
	"backend/internal/models"
)

const bcryptCost = 12

// dummyHash is compared against when the email is unknown so the response
// time does not reveal whether the account exists.
var dummyHash = func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("dummy-password"), bcryptCost)
	if err != nil {
		panic(err)
	}
	return hash
}()

type signupRequest struct {
	Name     string `json:"name" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Signup registers a new account. Every signup gets the base role; elevated
// roles are only assigned by an admin afterwards.
func Signup(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/signup"
		defer handlePanic(c, route)

		var req signupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			respondError(c, errInternal("password hashing failed", err))
			return
		}

		now := time.Now()
		user := models.User{
			Name:      strings.TrimSpace(req.Name),
			Slug:      slug.Make(req.Name),
			Email:     normalizeEmail(req.Email),
			Phone:     strings.TrimSpace(req.Phone),
			Password:  string(hash),
			Role:      models.RoleUser,
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

		token, err := issueToken(user.ID)
		if err != nil {
			respondError(c, errInternal("token generation failed", err))
			return
		}

		log.Println("[AUTH] [INFO] new user registered:", user.Email)
		c.JSON(http.StatusCreated, gin.H{
			"data":  user,
			"token": token,
		})
	}
}

// Login verifies credentials. Unknown email and wrong password take the same
// code path and produce the same message.
func Login(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
		defer handlePanic(c, route)

		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var user models.User
		err := db.Collection("users").FindOne(ctx, bson.M{"email": normalizeEmail(req.Email)}).Decode(&user)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				// Burn the same bcrypt time as a real comparison.
				_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
				respondError(c, errUnauthorized("Incorrect email or password"))
				return
			}
			respondError(c, errInternal("db error", err))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			respondError(c, errUnauthorized("Incorrect email or password"))
			return
		}

		token, err := issueToken(user.ID)
		if err != nil {
			respondError(c, errInternal("token generation failed", err))
			return
		}

		log.Println("[AUTH] [INFO] user logged in:", user.Email)
		c.JSON(http.StatusOK, gin.H{
			"data":  user,
			"token": token,
		})
	}
}

// issueToken signs a short-lived access token for the given user.
func issueToken(userID primitive.ObjectID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"userId": userID.Hex(),
		"iat":    now.Unix(),
		"exp":    now.Add(config.AppEnv.AccessTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppEnv.JWTSecret))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
