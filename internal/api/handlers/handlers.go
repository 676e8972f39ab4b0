// Package handlers implements the HTTP handlers. Each handler is a
// small struct over its service; request DTOs live next to the
// handler that consumes them.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/perkhub/coffee-shop-backend/internal/auth"
	"github.com/perkhub/coffee-shop-backend/internal/repository"
	"github.com/perkhub/coffee-shop-backend/internal/rules"
	"github.com/perkhub/coffee-shop-backend/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// intParam parses a positive integer URL parameter.
func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v < 1 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return v, nil
}

// writeError maps domain errors to statuses: service and repository
// sentinels first, then the rules engine's typed error, then 500.
func writeError(w http.ResponseWriter, err error) {
	var unavailable *service.UnavailableItemsError
	switch {
	case errors.Is(err, service.ErrValidation):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, repository.ErrDuplicateEmail),
		errors.Is(err, repository.ErrDuplicateCoffee),
		errors.Is(err, repository.ErrDuplicateReview):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrCoffeeNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrReviewNotFound),
		errors.Is(err, repository.ErrPricingRuleNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "some items are unavailable",
			"failures": unavailable.Failures,
		})
	default:
		if kind, ok := rules.KindOf(err); ok {
			writeMessage(w, kind.HTTPStatus(), err.Error())
			return
		}
		slog.Error("request failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
