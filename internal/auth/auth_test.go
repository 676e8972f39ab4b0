package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/perkhub/coffee-shop-backend/internal/models"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	good := []string{"Passw0rd", "A1bcdefg", "longEnough123"}
	for _, p := range good {
		if err := ValidatePassword(p); err != nil {
			t.Errorf("ValidatePassword(%q) error: %v", p, err)
		}
	}
	bad := []string{"short1A", "alllower1", "ALLUPPER1", "NoDigitsHere"}
	for _, p := range bad {
		if err := ValidatePassword(p); err == nil {
			t.Errorf("ValidatePassword(%q): want error, got nil", p)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	if err := ValidateEmail("alex@example.com"); err != nil {
		t.Errorf("ValidateEmail error: %v", err)
	}
	for _, e := range []string{"", "nope", "a@b", "spaces in@example.com"} {
		if err := ValidateEmail(e); err == nil {
			t.Errorf("ValidateEmail(%q): want error, got nil", e)
		}
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("Secret123")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if hash == "Secret123" {
		t.Fatal("hash equals plaintext")
	}
	if err := VerifyPassword(hash, "Secret123"); err != nil {
		t.Errorf("VerifyPassword() error: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("VerifyPassword(wrong) = %v, want ErrWrongPassword", err)
	}
}

func testUser() *models.User {
	return &models.User{ID: 42, Email: "alex@example.com", Role: models.RoleCustomer}
}

func TestTokenPairRoundTrip(t *testing.T) {
	t.Parallel()
	ts := NewTokenService([]byte("test-secret"))
	pair, err := ts.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair() error: %v", err)
	}

	claims, err := ts.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess() error: %v", err)
	}
	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID() error: %v", err)
	}
	if id != 42 || claims.Email != "alex@example.com" || claims.Role != "customer" {
		t.Errorf("claims = %d/%s/%s, want 42/alex@example.com/customer", id, claims.Email, claims.Role)
	}

	if _, err := ts.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Errorf("VerifyRefresh() error: %v", err)
	}
}

func TestTokenUseIsEnforced(t *testing.T) {
	t.Parallel()
	ts := NewTokenService([]byte("test-secret"))
	pair, err := ts.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair() error: %v", err)
	}
	if _, err := ts.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyAccess(refresh token) = %v, want ErrInvalidToken", err)
	}
	if _, err := ts.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyRefresh(access token) = %v, want ErrInvalidToken", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	t.Parallel()
	ts := NewTokenService([]byte("test-secret"))
	ts.now = func() time.Time { return time.Now().Add(-time.Hour) }
	pair, err := ts.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair() error: %v", err)
	}

	ts.now = time.Now
	if _, err := ts.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyAccess(expired) = %v, want ErrInvalidToken", err)
	}
	// The refresh token's 7-day TTL survives a one-hour skew.
	if _, err := ts.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Errorf("VerifyRefresh() error: %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	t.Parallel()
	pair, err := NewTokenService([]byte("secret-a")).IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair() error: %v", err)
	}
	if _, err := NewTokenService([]byte("secret-b")).VerifyAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyAccess(wrong secret) = %v, want ErrInvalidToken", err)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	t.Parallel()
	if HashToken("abc") != HashToken("abc") {
		t.Error("HashToken not deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("HashToken collision on different inputs")
	}
	if len(HashToken("abc")) != 64 {
		t.Errorf("HashToken length = %d, want 64 hex chars", len(HashToken("abc")))
	}
}
