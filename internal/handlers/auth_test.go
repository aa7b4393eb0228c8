package handlers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/config"
)

func TestIssueTokenRoundTrip(t *testing.T) {
	config.AppEnv.JWTSecret = "test-secret"
	config.AppEnv.AccessTokenTTL = time.Hour

	userID := primitive.NewObjectID()
	token, err := issueToken(userID)
	if err != nil {
		t.Fatalf("issueToken returned error: %v", err)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims["userId"] != userID.Hex() {
		t.Fatalf("expected userId claim %s, got %v", userID.Hex(), claims["userId"])
	}

	exp, _ := claims["exp"].(float64)
	iat, _ := claims["iat"].(float64)
	if int64(exp-iat) != int64(time.Hour.Seconds()) {
		t.Fatalf("expected 1h lifetime, got %vs", exp-iat)
	}
}

func TestIssueTokenRejectsWrongSecret(t *testing.T) {
	config.AppEnv.JWTSecret = "test-secret"
	config.AppEnv.AccessTokenTTL = time.Hour

	token, err := issueToken(primitive.NewObjectID())
	if err != nil {
		t.Fatalf("issueToken returned error: %v", err)
	}

	_, err = jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte("other-secret"), nil
	})
	if err == nil {
		t.Fatal("expected verification to fail with a different secret")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := normalizeEmail("  User@Example.COM "); got != "user@example.com" {
		t.Fatalf("unexpected normalized email: %q", got)
	}
}

func TestGenerateResetCodeSixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateResetCode()
		if err != nil {
			t.Fatalf("generateResetCode returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6-digit code, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected numeric code, got %q", code)
			}
		}
	}
}

func TestHashResetCodeDeterministicAndOneWay(t *testing.T) {
	a := hashResetCode("123456")
	b := hashResetCode("123456")
	c := hashResetCode("654321")

	if a != b {
		t.Fatal("expected identical hashes for the same code")
	}
	if a == c {
		t.Fatal("expected different hashes for different codes")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(a))
	}
	if a == "123456" {
		t.Fatal("hash must not equal the plaintext code")
	}
}
