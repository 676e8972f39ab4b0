package rules

import (
	"context"
	"fmt"
	"time"
)

// OrderItem is one line of an order being checked for availability or
// prep time.
type OrderItem struct {
	CoffeeID int `json:"coffee_id"`
	Quantity int `json:"quantity"`
}

// ValidationFailure names one unavailable item and why.
type ValidationFailure struct {
	CoffeeID   int    `json:"coffee_id"`
	CoffeeName string `json:"coffee_name,omitempty"`
	Reason     string `json:"reason"`
}

// OrderValidationResult is the outcome of checking every item in an
// order.
type OrderValidationResult struct {
	IsValid  bool                `json:"is_valid"`
	Errors   []ValidationFailure `json:"errors"`
	Warnings []string            `json:"warnings"`
}

// AvailabilityWriter persists availability updates. SQLSource
// implements it.
type AvailabilityWriter interface {
	UpsertAvailability(ctx context.Context, coffeeID int, status AvailabilityStatus, reason string) error
}

// AvailabilityEngine checks items against availability rules and
// validates whole orders.
type AvailabilityEngine struct {
	store  *ConfigStore
	writer AvailabilityWriter
	now    func() time.Time
}

func NewAvailabilityEngine(store *ConfigStore, writer AvailabilityWriter) *AvailabilityEngine {
	return &AvailabilityEngine{store: store, writer: writer, now: time.Now}
}

// CheckCoffeeAvailability returns the effective availability of one
// coffee. A coffee without a rule is available. When a seasonal
// window is configured and the current time falls outside it, the
// status is overridden to seasonal with a reason naming the boundary.
func (e *AvailabilityEngine) CheckCoffeeAvailability(ctx context.Context, coffeeID int) (CoffeeAvailability, error) {
	availabilityRules, err := e.store.AvailabilityRules(ctx)
	if err != nil {
		return CoffeeAvailability{}, err
	}

	availability, ok := availabilityRules[coffeeID]
	if !ok {
		availability = CoffeeAvailability{
			CoffeeID:  coffeeID,
			Status:    Available,
			UpdatedAt: e.now(),
		}
	}

	if availability.AvailableFrom != nil && e.now().Before(*availability.AvailableFrom) {
		availability.Status = Seasonal
		availability.Reason = "Not available until " + availability.AvailableFrom.Format("2006-01-02 15:04")
		return availability, nil
	}
	if availability.AvailableUntil != nil && e.now().After(*availability.AvailableUntil) {
		availability.Status = Seasonal
		availability.Reason = "No longer available after " + availability.AvailableUntil.Format("2006-01-02 15:04")
		return availability, nil
	}
	return availability, nil
}

// ValidateOrderItems checks every item and collects all failures
// rather than stopping at the first. A failed availability lookup
// marks that item invalid instead of aborting the validation.
func (e *AvailabilityEngine) ValidateOrderItems(ctx context.Context, items []OrderItem) (*OrderValidationResult, error) {
	failures := []ValidationFailure{}

	for _, item := range items {
		availability, err := e.CheckCoffeeAvailability(ctx, item.CoffeeID)
		if err != nil {
			failures = append(failures, ValidationFailure{
				CoffeeID: item.CoffeeID,
				Reason:   fmt.Sprintf("Unable to verify availability: %v", err),
			})
			continue
		}
		switch availability.Status {
		case Available:
		case OutOfStock:
			failures = append(failures, ValidationFailure{
				CoffeeID: item.CoffeeID,
				Reason:   reasonOr(availability.Reason, "Out of stock"),
			})
		case Seasonal:
			failures = append(failures, ValidationFailure{
				CoffeeID: item.CoffeeID,
				Reason:   reasonOr(availability.Reason, "Seasonal item not currently available"),
			})
		case Discontinued:
			failures = append(failures, ValidationFailure{
				CoffeeID: item.CoffeeID,
				Reason:   reasonOr(availability.Reason, "Item has been discontinued"),
			})
		}
	}

	return &OrderValidationResult{
		IsValid:  len(failures) == 0,
		Errors:   failures,
		Warnings: []string{},
	}, nil
}

// UpdateAvailability writes the new status and invalidates the cached
// availability rules so the next read sees it.
func (e *AvailabilityEngine) UpdateAvailability(ctx context.Context, coffeeID int, status AvailabilityStatus, reason string) error {
	if err := e.writer.UpsertAvailability(ctx, coffeeID, status, reason); err != nil {
		return err
	}
	e.store.Invalidate(CategoryAvailability)
	return nil
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
