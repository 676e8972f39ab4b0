// Package repository implements Postgres persistence for users,
// menu, orders and reviews, plus admin writes for the rule tables the
// business rules engine reads.
package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrTokenNotFound  = errors.New("refresh token not found")

	ErrCoffeeNotFound      = errors.New("coffee not found")
	ErrDuplicateCoffee     = errors.New("coffee name already exists")
	ErrOrderNotFound       = errors.New("order not found")
	ErrReviewNotFound      = errors.New("review not found")
	ErrDuplicateReview     = errors.New("coffee already reviewed by this user")
	ErrPricingRuleNotFound = errors.New("pricing rule not found")
)

// isUniqueViolation reports whether err is a Postgres unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
