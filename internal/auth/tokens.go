package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/perkhub/coffee-shop-backend/internal/models"
)

const (
	// AccessTokenTTL is the lifetime of a bearer access token.
	AccessTokenTTL = 15 * time.Minute
	// RefreshTokenTTL is the lifetime of a refresh token; the token's
	// SHA-256 hash is also stored server-side with the same expiry.
	RefreshTokenTTL = 7 * 24 * time.Hour

	accessTokenUse  = "access"
	refreshTokenUse = "refresh"
)

// ErrInvalidToken covers expired, malformed and wrongly-signed tokens
// as well as a refresh token presented where an access token is
// required (and vice versa).
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload for both token types. Subject carries the
// user id as a decimal string.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Role     string `json:"role"`
	TokenUse string `json:"token_use"`
}

// UserID parses the subject claim back to the user id.
func (c *Claims) UserID() (int, error) {
	id, err := strconv.Atoi(c.Subject)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, c.Subject)
	}
	return id, nil
}

// TokenPair is what login, register and refresh hand back to clients.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// TokenService signs and verifies HS256 JWTs.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret []byte) *TokenService {
	return &TokenService{secret: secret, now: time.Now}
}

// IssuePair signs a fresh access/refresh token pair for the user.
func (s *TokenService) IssuePair(user *models.User) (TokenPair, error) {
	access, err := s.sign(user, accessTokenUse, AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(user, refreshTokenUse, RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(AccessTokenTTL.Seconds()),
	}, nil
}

func (s *TokenService) sign(user *models.User, use string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:    user.Email,
		Role:     string(user.Role),
		TokenUse: use,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", use, err)
	}
	return token, nil
}

// VerifyAccess parses an access token and returns its claims.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, accessTokenUse)
}

// VerifyRefresh parses a refresh token and returns its claims. The
// caller must still check the token's hash against the store.
func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, refreshTokenUse)
}

func (s *TokenService) verify(token, use string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.TokenUse != use {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashToken returns the hex SHA-256 of a refresh token. Only the hash
// is stored, so a leaked refresh_tokens table cannot be replayed.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
