package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/perkhub/coffee-shop-backend/internal/models"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser inserts a new account. Emails are stored lower-cased; a
// duplicate yields ErrDuplicateEmail.
func (r *UserRepo) CreateUser(ctx context.Context, email, passwordHash string, role models.Role) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, role)
		VALUES (LOWER($1), $2, $3)
		RETURNING id, email, password_hash, role, created_at`,
		email, passwordHash, string(role),
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// UserByEmail looks a user up case-insensitively.
func (r *UserRepo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE email = LOWER($1)`, strings.TrimSpace(email)))
}

func (r *UserRepo) UserByID(ctx context.Context, id int) (*models.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE id = $1`, id))
}

func (r *UserRepo) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

type TokenRepo struct {
	db *sql.DB
}

func NewTokenRepo(db *sql.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// StoreRefreshToken persists a refresh token hash with its expiry.
func (r *TokenRepo) StoreRefreshToken(ctx context.Context, tokenHash string, userID int, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// RefreshTokenUser returns the user id a live refresh token belongs
// to. Expired or unknown tokens yield ErrTokenNotFound.
func (r *TokenRepo) RefreshTokenUser(ctx context.Context, tokenHash string) (int, error) {
	var userID int
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM refresh_tokens
		WHERE token_hash = $1 AND expires_at > NOW()`, tokenHash).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("look up refresh token: %w", err)
	}
	return userID, nil
}

// DeleteRefreshToken removes one stored token. Deleting an unknown
// token is not an error; logout stays idempotent.
func (r *TokenRepo) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
