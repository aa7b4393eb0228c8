package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

const dbTimeout = 5 * time.Second

// Authenticate verifies the bearer token, resolves the account it names and
// attaches it to the request context. A token issued before the user's last
// password change is rejected even when its signature and expiry are valid.
func Authenticate(db *mongo.Database, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "You are not logged in, please login first")
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		userHex, _ := claims["userId"].(string)
		userID, err := primitive.ObjectIDFromHex(userHex)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				abortUnauthorized(c, "The user belonging to this token no longer exists")
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": "internal server error",
			})
			return
		}
		if !user.IsActive {
			abortUnauthorized(c, "This account has been deactivated")
			return
		}

		issuedAt, hasIssuedAt := claims["iat"].(float64)
		if tokenStale(user.PasswordChangedAt, int64(issuedAt), hasIssuedAt) {
			abortUnauthorized(c, "Password was changed recently, please login again")
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// Authorize allows only the listed roles past; it must run after
// Authenticate.
func Authorize(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("user")
		user, ok := value.(models.User)
		if !exists || !ok {
			abortUnauthorized(c, "You are not logged in, please login first")
			return
		}

		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"status":  "fail",
			"message": "You are not allowed to perform this action",
		})
	}
}

// tokenStale reports whether the token predates the user's last password
// change. Users who never changed their password accept any valid token.
func tokenStale(passwordChangedAt *time.Time, issuedAtUnix int64, hasIssuedAt bool) bool {
	if passwordChangedAt == nil {
		return false
	}
	if !hasIssuedAt {
		return true
	}
	return passwordChangedAt.Unix() > issuedAtUnix
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":  "fail",
		"message": message,
	})
}
