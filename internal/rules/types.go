// Package rules implements the business rules engine: coffee
// availability, dynamic pricing, preparation time estimates and
// loyalty points, backed by cached rule configuration loaded from
// Postgres.
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category identifies one cached group of rule configuration.
type Category string

const (
	CategoryAvailability Category = "availability"
	CategoryPricing      Category = "pricing"
	CategoryPrepTime     Category = "prep_time"
	CategoryLoyalty      Category = "loyalty"
)

// Categories lists every cached category, in warm order.
var Categories = []Category{
	CategoryAvailability,
	CategoryPricing,
	CategoryPrepTime,
	CategoryLoyalty,
}

// AvailabilityStatus is the stocking state of a menu item.
type AvailabilityStatus string

const (
	Available    AvailabilityStatus = "available"
	OutOfStock   AvailabilityStatus = "out_of_stock"
	Seasonal     AvailabilityStatus = "seasonal"
	Discontinued AvailabilityStatus = "discontinued"
)

func ParseAvailabilityStatus(s string) (AvailabilityStatus, error) {
	switch AvailabilityStatus(s) {
	case Available, OutOfStock, Seasonal, Discontinued:
		return AvailabilityStatus(s), nil
	}
	return "", fmt.Errorf("unknown availability status %q", s)
}

// DiscountType distinguishes percentage discounts from flat amounts.
type DiscountType string

const (
	Percentage  DiscountType = "percentage"
	FixedAmount DiscountType = "fixed_amount"
)

func ParseDiscountType(s string) (DiscountType, error) {
	switch DiscountType(s) {
	case Percentage, FixedAmount:
		return DiscountType(s), nil
	}
	return "", fmt.Errorf("unknown discount type %q", s)
}

// RuleType is the evaluation family of a pricing rule.
type RuleType string

const (
	TimeBased     RuleType = "time_based"
	QuantityBased RuleType = "quantity_based"
	Promotional   RuleType = "promotional"
)

func ParseRuleType(s string) (RuleType, error) {
	switch RuleType(s) {
	case TimeBased, QuantityBased, Promotional:
		return RuleType(s), nil
	}
	return "", fmt.Errorf("unknown rule type %q", s)
}

// CombinationStrategy controls how multiple applicable discounts
// combine into one final price.
type CombinationStrategy string

const (
	Additive       CombinationStrategy = "additive"
	Multiplicative CombinationStrategy = "multiplicative"
	BestPrice      CombinationStrategy = "best_price"
)

func ParseCombinationStrategy(s string) (CombinationStrategy, error) {
	switch CombinationStrategy(s) {
	case Additive, Multiplicative, BestPrice:
		return CombinationStrategy(s), nil
	case "":
		return BestPrice, nil
	}
	return "", fmt.Errorf("unknown combination strategy %q", s)
}

// TimeRange is a daily window in "HH:MM" wall-clock form. A range
// whose start is later than its end wraps past midnight.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate parses both endpoints and reports the first malformed one.
func (r TimeRange) Validate() error {
	if _, err := parseClock(r.Start); err != nil {
		return err
	}
	if _, err := parseClock(r.End); err != nil {
		return err
	}
	return nil
}

// Contains reports whether the wall-clock time of t falls inside the
// range. Both endpoints are inclusive; comparison is at minute
// granularity.
func (r TimeRange) Contains(t time.Time) (bool, error) {
	start, err := parseClock(r.Start)
	if err != nil {
		return false, err
	}
	end, err := parseClock(r.End)
	if err != nil {
		return false, err
	}
	now := t.Hour()*60 + t.Minute()
	if start > end {
		return now >= start || now <= end, nil
	}
	return now >= start && now <= end, nil
}

// parseClock converts "HH:MM" to minutes after midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("Invalid time format '%s': expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("Invalid hour in time '%s'", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("Invalid minute in time '%s'", s)
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("Hour must be 0-23 in time '%s'", s)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("Minute must be 0-59 in time '%s'", s)
	}
	return hour*60 + minute, nil
}
