package rules

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies engine failures so callers can map them to
// distinct HTTP statuses.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindInvalidPricingRule
	KindInvalidConfiguration
	KindDatabase
	KindConfigurationNotFound
	KindCalculation
	KindJSON
	KindCoffeeNotFound
	KindUserNotFound
	KindOrderNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidPricingRule:
		return "invalid_pricing_rule"
	case KindInvalidConfiguration:
		return "invalid_configuration"
	case KindDatabase:
		return "database"
	case KindConfigurationNotFound:
		return "configuration_not_found"
	case KindCalculation:
		return "calculation"
	case KindJSON:
		return "json"
	case KindCoffeeNotFound:
		return "coffee_not_found"
	case KindUserNotFound:
		return "user_not_found"
	case KindOrderNotFound:
		return "order_not_found"
	}
	return "unknown"
}

// prefix is the human-readable lead-in for the kind's messages.
// Kinds whose messages are fully formed at the call site return "".
func (k ErrorKind) prefix() string {
	switch k {
	case KindValidation:
		return "Validation failed"
	case KindInvalidPricingRule:
		return "Invalid pricing rule configuration"
	case KindInvalidConfiguration:
		return "Invalid configuration"
	case KindDatabase:
		return "Database error"
	case KindConfigurationNotFound:
		return "Configuration not found"
	case KindCalculation:
		return "Calculation error"
	case KindJSON:
		return "JSON error"
	case KindCoffeeNotFound:
		return "Coffee not found"
	case KindUserNotFound:
		return "User not found"
	case KindOrderNotFound:
		return "Order not found"
	}
	return ""
}

// HTTPStatus maps the kind to the response status used by the API
// layer.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation, KindInvalidPricingRule, KindInvalidConfiguration, KindJSON:
		return http.StatusBadRequest
	case KindConfigurationNotFound, KindCoffeeNotFound, KindUserNotFound, KindOrderNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Error is the engine's error type. Msg carries the detail; the
// rendered message prepends the kind's prefix. Err, when set, is the
// underlying cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg != "" {
			msg = msg + ": " + e.Err.Error()
		} else {
			msg = e.Err.Error()
		}
	}
	if p := e.Kind.prefix(); p != "" {
		return p + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, reporting false when err is
// not an engine error.
func KindOf(err error) (ErrorKind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func dbError(err error, format string, args ...any) *Error {
	return &Error{Kind: KindDatabase, Msg: fmt.Sprintf(format, args...), Err: err}
}

func jsonError(err error) *Error {
	return &Error{Kind: KindJSON, Err: err}
}
