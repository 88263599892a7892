package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateToken(userID, "lalith", "https://example.com/p.png", "moderator", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ParseToken(token, "test-secret")
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("user id = %s, want %s", claims.UserID, userID)
	}
	if claims.DisplayName != "lalith" || claims.Role != "moderator" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Issuer != "agora" {
		t.Fatalf("issuer = %q, want agora", claims.Issuer)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "x", "", "", "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ParseToken(token, "secret-b"); err == nil {
		t.Fatalf("token accepted with the wrong secret")
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "x", "", "", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ParseToken(token, "secret"); err == nil {
		t.Fatalf("expired token accepted")
	}
}
