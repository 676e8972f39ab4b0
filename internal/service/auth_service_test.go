package service

import (
	"context"
	"errors"
	"testing"

	"github.com/perkhub/coffee-shop-backend/internal/auth"
	"github.com/perkhub/coffee-shop-backend/internal/models"
	"github.com/perkhub/coffee-shop-backend/internal/repository"
)

func newTestAuthService() (*AuthService, *fakeUserRepo, *fakeTokenRepo) {
	users := newFakeUserRepo()
	tokens := newFakeTokenRepo()
	return NewAuthService(users, tokens, auth.NewTokenService([]byte("test-secret"))), users, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	res, err := svc.Register(ctx, "alex@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if res.User.Role != models.RoleCustomer {
		t.Errorf("role = %s, want customer", res.User.Role)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Error("Register() returned empty tokens")
	}

	logged, err := svc.Login(ctx, "alex@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if logged.User.ID != res.User.ID {
		t.Errorf("login user id = %d, want %d", logged.User.ID, res.User.ID)
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "not-an-email", "Secret123"); !errors.Is(err, ErrValidation) {
		t.Errorf("Register(bad email) = %v, want ErrValidation", err)
	}
	if _, err := svc.Register(ctx, "a@example.com", "weak"); !errors.Is(err, ErrValidation) {
		t.Errorf("Register(weak password) = %v, want ErrValidation", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alex@example.com", "Secret123"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if _, err := svc.Register(ctx, "alex@example.com", "Secret123"); !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Errorf("Register(duplicate) = %v, want ErrDuplicateEmail", err)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alex@example.com", "Secret123"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if _, err := svc.Login(ctx, "alex@example.com", "WrongPass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong password) = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "Secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(unknown email) = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	t.Parallel()
	svc, _, tokens := newTestAuthService()
	ctx := context.Background()

	res, err := svc.Register(ctx, "alex@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	old := res.Tokens.RefreshToken

	refreshed, err := svc.Refresh(ctx, old)
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if refreshed.Tokens.RefreshToken == old {
		t.Error("Refresh() did not rotate the refresh token")
	}

	// The consumed token's hash is gone, so a replay fails.
	if _, err := tokens.RefreshTokenUser(ctx, auth.HashToken(old)); !errors.Is(err, repository.ErrTokenNotFound) {
		t.Errorf("old token lookup = %v, want ErrTokenNotFound", err)
	}
	if _, err := svc.Refresh(ctx, old); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("Refresh(replayed token) = %v, want ErrInvalidToken", err)
	}
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	res, err := svc.Register(ctx, "alex@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := svc.Logout(ctx, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if _, err := svc.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("Refresh(after logout) = %v, want ErrInvalidToken", err)
	}
	// Logging out twice is fine.
	if err := svc.Logout(ctx, res.Tokens.RefreshToken); err != nil {
		t.Errorf("second Logout() error: %v", err)
	}
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	res, err := svc.Register(ctx, "alex@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	me, err := svc.CurrentUser(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("CurrentUser() error: %v", err)
	}
	if me.Email != "alex@example.com" {
		t.Errorf("email = %s, want alex@example.com", me.Email)
	}
	if _, err := svc.CurrentUser(ctx, 999); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("CurrentUser(unknown) = %v, want ErrUserNotFound", err)
	}
}
