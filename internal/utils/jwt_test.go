package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateRoleToken_Success(t *testing.T) {
	before := time.Now()

	signed, expiresAt, err := GenerateRoleToken("authenticated", time.Hour, "secret-key")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if signed == "" {
		t.Fatal("expected non-empty token")
	}
	if expiresAt.Before(before.Add(time.Hour - time.Second)) {
		t.Errorf("expected expiry about an hour from now, got %v", expiresAt)
	}

	// Verify claims
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (any, error) {
		return []byte("secret-key"), nil
	})
	if err != nil {
		t.Fatalf("expected token to verify, got: %v", err)
	}
	if !token.Valid {
		t.Fatal("expected valid token")
	}
	if claims["role"] != "authenticated" {
		t.Errorf("expected role claim 'authenticated', got %v", claims["role"])
	}
	if _, err := claims.GetExpirationTime(); err != nil {
		t.Errorf("expected exp claim, got error: %v", err)
	}
}

func TestGenerateRoleToken_WrongKeyFailsVerification(t *testing.T) {
	signed, _, err := GenerateRoleToken("anon", time.Minute, "secret-key")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	_, err = jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		return []byte("other-key"), nil
	})
	if err == nil {
		t.Fatal("expected signature error, got nil")
	}
}

func TestGenerateRoleToken_InvalidParams(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		duration time.Duration
		key      string
	}{
		{"empty role", "", time.Hour, "key"},
		{"zero duration", "anon", 0, "key"},
		{"negative duration", "anon", -time.Second, "key"},
		{"empty key", "anon", time.Hour, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := GenerateRoleToken(tt.role, tt.duration, tt.key)
			if err == nil {
				t.Error("expected error for invalid parameters, got nil")
			}
		})
	}
}
