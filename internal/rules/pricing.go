package rules

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingOrderItem is one order line priced by the engine. BasePrice
// is the unit price.
type PricingOrderItem struct {
	CoffeeID  int             `json:"coffee_id"`
	Quantity  int             `json:"quantity"`
	BasePrice decimal.Decimal `json:"base_price"`
}

// AppliedPricingRule describes one rule that matched the order and
// the discount it contributes.
type AppliedPricingRule struct {
	RuleID         uuid.UUID       `json:"rule_id"`
	RuleType       RuleType        `json:"rule_type"`
	Description    string          `json:"description"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// OrderPricingResult is the full pricing breakdown for an order.
type OrderPricingResult struct {
	BasePrice     decimal.Decimal      `json:"base_price"`
	AppliedRules  []AppliedPricingRule `json:"applied_rules"`
	FinalPrice    decimal.Decimal      `json:"final_price"`
	TotalDiscount decimal.Decimal      `json:"total_discount"`
}

// PricingEngine evaluates pricing rules against orders and combines
// the resulting discounts.
type PricingEngine struct {
	store *ConfigStore
	now   func() time.Time
}

func NewPricingEngine(store *ConfigStore) *PricingEngine {
	return &PricingEngine{store: store, now: time.Now}
}

// CalculateOrderPrice computes the base price, evaluates every
// applicable rule and combines the discounts under the given
// strategy. The final price never goes below zero.
func (e *PricingEngine) CalculateOrderPrice(ctx context.Context, items []PricingOrderItem, strategy CombinationStrategy) (*OrderPricingResult, error) {
	basePrice := baseOrderPrice(items)

	applicable, err := e.ApplicableRules(ctx, items)
	if err != nil {
		return nil, err
	}

	finalPrice, applied, err := e.applyRules(basePrice, applicable, items, strategy)
	if err != nil {
		return nil, err
	}

	return &OrderPricingResult{
		BasePrice:     basePrice,
		AppliedRules:  applied,
		FinalPrice:    finalPrice,
		TotalDiscount: basePrice.Sub(finalPrice),
	}, nil
}

func baseOrderPrice(items []PricingOrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.BasePrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// ApplicableRules filters the active rules down to those whose
// validity window covers now and whose coffee targeting, if any,
// intersects the order. The result keeps the store's descending
// priority order; equal priorities keep their relative order.
func (e *PricingEngine) ApplicableRules(ctx context.Context, items []PricingOrderItem) ([]PricingRule, error) {
	allRules, err := e.store.PricingRules(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()

	var applicable []PricingRule
	for _, rule := range allRules {
		if !rule.IsActive {
			continue
		}
		if now.Before(rule.ValidFrom) {
			continue
		}
		if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
			continue
		}
		if rule.CoffeeIDs != nil && !orderContainsAny(rule.CoffeeIDs, items) {
			continue
		}
		applicable = append(applicable, rule)
	}

	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Priority > applicable[j].Priority
	})
	return applicable, nil
}

func orderContainsAny(coffeeIDs []int, items []PricingOrderItem) bool {
	for _, id := range coffeeIDs {
		for _, item := range items {
			if item.CoffeeID == id {
				return true
			}
		}
	}
	return false
}

func (e *PricingEngine) applyRules(basePrice decimal.Decimal, rules []PricingRule, items []PricingOrderItem, strategy CombinationStrategy) (decimal.Decimal, []AppliedPricingRule, error) {
	applied := []AppliedPricingRule{}
	for i := range rules {
		rule, ok, err := e.evaluateRule(&rules[i], items)
		if err != nil {
			return decimal.Decimal{}, nil, err
		}
		if ok {
			applied = append(applied, rule)
		}
	}

	var finalPrice decimal.Decimal
	switch strategy {
	case Additive:
		finalPrice = applyAdditive(basePrice, applied)
	case Multiplicative:
		finalPrice = applyMultiplicative(basePrice, applied)
	default:
		finalPrice = applyBestPrice(basePrice, applied)
	}

	if finalPrice.IsNegative() {
		finalPrice = decimal.Zero
	}
	return finalPrice, applied, nil
}

// evaluateRule decides whether one rule fires for this order. The
// boolean is false when the rule's condition does not hold.
func (e *PricingEngine) evaluateRule(rule *PricingRule, items []PricingOrderItem) (AppliedPricingRule, bool, error) {
	switch rule.RuleType {
	case TimeBased:
		var cfg TimeBasedRuleConfig
		if err := json.Unmarshal(rule.RuleConfig, &cfg); err != nil {
			return AppliedPricingRule{}, false, jsonError(err)
		}
		inRange := false
		for _, tr := range cfg.TimeRanges {
			ok, err := tr.Contains(e.now())
			if err != nil {
				// Malformed range never matches; load-time
				// validation rejects these before they get here.
				continue
			}
			if ok {
				inRange = true
				break
			}
		}
		if !inRange {
			return AppliedPricingRule{}, false, nil
		}
		return AppliedPricingRule{
			RuleID:         rule.RuleID,
			RuleType:       rule.RuleType,
			Description:    descriptionOr(cfg.Description, "Time-based discount"),
			DiscountAmount: cfg.DiscountValue,
		}, true, nil

	case QuantityBased:
		var cfg QuantityBasedRuleConfig
		if err := json.Unmarshal(rule.RuleConfig, &cfg); err != nil {
			return AppliedPricingRule{}, false, jsonError(err)
		}
		totalQuantity := 0
		for _, item := range items {
			totalQuantity += item.Quantity
		}
		if totalQuantity < cfg.MinQuantity {
			return AppliedPricingRule{}, false, nil
		}
		return AppliedPricingRule{
			RuleID:         rule.RuleID,
			RuleType:       rule.RuleType,
			Description:    descriptionOr(cfg.Description, "Quantity discount"),
			DiscountAmount: cfg.DiscountValue,
		}, true, nil

	case Promotional:
		var cfg PromotionalRuleConfig
		if err := json.Unmarshal(rule.RuleConfig, &cfg); err != nil {
			return AppliedPricingRule{}, false, jsonError(err)
		}
		// Validity windows were already checked in ApplicableRules;
		// a promotional rule that got this far applies.
		return AppliedPricingRule{
			RuleID:         rule.RuleID,
			RuleType:       rule.RuleType,
			Description:    descriptionOr(cfg.Description, "Promotional discount"),
			DiscountAmount: cfg.DiscountValue,
		}, true, nil
	}
	return AppliedPricingRule{}, false, nil
}

// applyAdditive sums the discounts, each computed against the
// original base price.
func applyAdditive(basePrice decimal.Decimal, rules []AppliedPricingRule) decimal.Decimal {
	totalDiscount := decimal.Zero
	for _, rule := range rules {
		totalDiscount = totalDiscount.Add(discountAmount(basePrice, rule))
	}
	return basePrice.Sub(totalDiscount)
}

// applyMultiplicative applies the discounts sequentially, each
// computed against the running price.
func applyMultiplicative(basePrice decimal.Decimal, rules []AppliedPricingRule) decimal.Decimal {
	currentPrice := basePrice
	for _, rule := range rules {
		currentPrice = currentPrice.Sub(discountAmount(currentPrice, rule))
	}
	return currentPrice
}

// applyBestPrice computes both strategies and keeps the cheaper one.
func applyBestPrice(basePrice decimal.Decimal, rules []AppliedPricingRule) decimal.Decimal {
	return decimal.Min(
		applyAdditive(basePrice, rules),
		applyMultiplicative(basePrice, rules),
	)
}

// discountAmount interprets the rule's discount magnitude: values up
// to 100 are a percentage of price, larger values a fixed amount.
// TODO: carry the discount type through AppliedPricingRule instead of
// inferring it from the magnitude.
func discountAmount(price decimal.Decimal, rule AppliedPricingRule) decimal.Decimal {
	if rule.DiscountAmount.LessThanOrEqual(decimal.NewFromInt(100)) {
		return price.Mul(rule.DiscountAmount).Div(decimal.NewFromInt(100))
	}
	return rule.DiscountAmount
}

func descriptionOr(description, fallback string) string {
	if description != "" {
		return description
	}
	return fallback
}
