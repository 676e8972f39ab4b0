// Package service holds the application services between the HTTP
// handlers and the repositories. Each service declares the narrow
// repository interfaces it consumes so tests can substitute fakes.
package service

import "errors"

var (
	// ErrValidation marks malformed caller input; handlers map it to
	// 400. Wrap it with the specific message:
	// fmt.Errorf("%w: quantity must be between 1 and 50", ErrValidation).
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials covers both unknown emails and wrong
	// passwords so login failures do not reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrForbidden marks an authenticated caller acting on a resource
	// they do not own.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition marks a disallowed order status or payment
	// status change; handlers map it to 409.
	ErrInvalidTransition = errors.New("invalid status transition")
)
