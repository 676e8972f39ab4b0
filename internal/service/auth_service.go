package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/perkhub/coffee-shop-backend/internal/auth"
	"github.com/perkhub/coffee-shop-backend/internal/models"
	"github.com/perkhub/coffee-shop-backend/internal/repository"
)

type UserRepo interface {
	CreateUser(ctx context.Context, email, passwordHash string, role models.Role) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id int) (*models.User, error)
}

type TokenRepo interface {
	StoreRefreshToken(ctx context.Context, tokenHash string, userID int, expiresAt time.Time) error
	RefreshTokenUser(ctx context.Context, tokenHash string) (int, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
}

// AuthService implements registration, login and the refresh token
// rotation protocol.
type AuthService struct {
	users  UserRepo
	tokens TokenRepo
	jwt    *auth.TokenService
	now    func() time.Time
}

func NewAuthService(users UserRepo, tokens TokenRepo, jwt *auth.TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens, jwt: jwt, now: time.Now}
}

// AuthResult is what register, login and refresh return.
type AuthResult struct {
	User   models.UserResponse `json:"user"`
	Tokens auth.TokenPair      `json:"tokens"`
}

// Register creates a customer account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if err := auth.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.CreateUser(ctx, email, hash, models.RoleCustomer)
	if err != nil {
		return nil, err
	}
	return s.signIn(ctx, user)
}

// Login verifies the credentials and issues a token pair. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return s.signIn(ctx, user)
}

// Refresh rotates a refresh token: the presented token's stored hash
// is deleted and a fresh pair is issued, so a replayed old token
// fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if _, err := s.jwt.VerifyRefresh(refreshToken); err != nil {
		return nil, err
	}
	hash := auth.HashToken(refreshToken)
	userID, err := s.tokens.RefreshTokenUser(ctx, hash)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.DeleteRefreshToken(ctx, hash); err != nil {
		return nil, err
	}
	return s.signIn(ctx, user)
}

// Logout invalidates the presented refresh token. Access tokens
// simply age out.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.DeleteRefreshToken(ctx, auth.HashToken(refreshToken))
}

// CurrentUser resolves the authenticated user's profile.
func (s *AuthService) CurrentUser(ctx context.Context, userID int) (*models.UserResponse, error) {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := user.Response()
	return &resp, nil
}

func (s *AuthService) signIn(ctx context.Context, user *models.User) (*AuthResult, error) {
	pair, err := s.jwt.IssuePair(user)
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(auth.RefreshTokenTTL)
	if err := s.tokens.StoreRefreshToken(ctx, auth.HashToken(pair.RefreshToken), user.ID, expires); err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Response(), Tokens: pair}, nil
}
