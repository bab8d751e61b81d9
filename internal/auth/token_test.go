package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParseAccessToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueAccessToken(secret, 42, "avery", true, false, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, userID, err := ParseAccessToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected user id 42, got %d", userID)
	}
	if claims.Username != "avery" {
		t.Fatalf("expected username avery, got %q", claims.Username)
	}
	if !claims.Staff || claims.Superuser {
		t.Fatalf("unexpected privilege flags: staff=%v superuser=%v", claims.Staff, claims.Superuser)
	}
	if claims.ID == "" {
		t.Fatalf("expected a token id")
	}
}

func TestParseExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueAccessToken(secret, 42, "avery", false, false, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, _, err = ParseAccessToken(secret, token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseWithWrongSecret(t *testing.T) {
	token, err := IssueAccessToken([]byte("secret-a"), 42, "avery", false, false, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, _, err = ParseAccessToken([]byte("secret-b"), token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseGarbageToken(t *testing.T) {
	_, _, err := ParseAccessToken([]byte("test-secret"), "not.a.token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshTokensAreUniqueAndHashable(t *testing.T) {
	a := NewRefreshToken()
	b := NewRefreshToken()
	if a == "" || a == b {
		t.Fatalf("expected distinct refresh tokens, got %q and %q", a, b)
	}
	if HashToken(a) == HashToken(b) {
		t.Fatalf("distinct tokens must hash differently")
	}
	if HashToken(a) != HashToken(a) {
		t.Fatalf("hash must be deterministic")
	}
}
