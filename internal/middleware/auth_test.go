package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"backend/internal/models"
)

func TestBearerTokenParsing(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc.def.ghi", "abc.def.ghi", true},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		if ok != tt.ok || token != tt.token {
			t.Fatalf("header %q: got (%q, %v), want (%q, %v)", tt.header, token, ok, tt.token, tt.ok)
		}
	}
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/protected", Authenticate(nil, "secret"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthenticateRejectsGarbageToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/protected", Authenticate(nil, "secret"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthenticateRejectsWrongSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)

	claims := jwt.MapClaims{
		"userId": "64a000000000000000000000",
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("signing test token failed: %v", err)
	}

	r := gin.New()
	r.GET("/protected", Authenticate(nil, "secret"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	claims := jwt.MapClaims{
		"userId": "64a000000000000000000000",
		"iat":    time.Now().Add(-2 * time.Hour).Unix(),
		"exp":    time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("signing test token failed: %v", err)
	}

	r := gin.New()
	r.GET("/protected", Authenticate(nil, "secret"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestTokenStaleness(t *testing.T) {
	changed := time.Now()
	beforeChange := changed.Add(-time.Minute).Unix()
	afterChange := changed.Add(time.Minute).Unix()

	if !tokenStale(&changed, beforeChange, true) {
		t.Fatal("token issued before password change must be stale")
	}
	if tokenStale(&changed, afterChange, true) {
		t.Fatal("token issued after password change must not be stale")
	}
	if tokenStale(nil, beforeChange, true) {
		t.Fatal("never-changed password must accept any valid token")
	}
	if !tokenStale(&changed, 0, false) {
		t.Fatal("missing iat claim must be treated as stale once a change exists")
	}
}

func TestAuthorizeRoleGate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	asRole := func(role string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set("user", models.User{Role: role})
		}
	}
	r.GET("/staff", asRole("manager"), Authorize("admin", "manager"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/admin", asRole("user"), Authorize("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/staff", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected manager to pass staff gate, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected base role to be forbidden, got %d", w.Code)
	}
}

func TestAuthorizeWithoutAuthenticatedUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/admin", Authorize("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without authentication, got %d", w.Code)
	}
}
