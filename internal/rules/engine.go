package rules

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine bundles the rule engines behind one facade and audits their
// decisions per order.
type Engine struct {
	availability *AvailabilityEngine
	pricing      *PricingEngine
	prepTime     *PrepTimeCalculator
	loyalty      *LoyaltyEngine
	audit        *AuditLogger
	metrics      *Metrics
	store        *ConfigStore
}

// NewEngine wires every component against the given database.
func NewEngine(db *sql.DB) *Engine {
	src := NewSQLSource(db)
	metrics := NewMetrics()
	store := NewConfigStoreWithMetrics(src, metrics)
	return &Engine{
		availability: NewAvailabilityEngine(store, src),
		pricing:      NewPricingEngine(store),
		prepTime:     NewPrepTimeCalculator(store, src),
		loyalty:      NewLoyaltyEngine(store, src),
		audit:        NewAuditLogger(src),
		metrics:      metrics,
		store:        store,
	}
}

func (e *Engine) Metrics() *Metrics                 { return e.metrics }
func (e *Engine) Availability() *AvailabilityEngine { return e.availability }
func (e *Engine) Pricing() *PricingEngine           { return e.pricing }
func (e *Engine) PrepTime() *PrepTimeCalculator     { return e.prepTime }
func (e *Engine) Loyalty() *LoyaltyEngine           { return e.loyalty }
func (e *Engine) Audit() *AuditLogger               { return e.audit }
func (e *Engine) Store() *ConfigStore               { return e.store }

// WarmCache pre-loads every configuration category so the first
// requests do not pay the load latency.
func (e *Engine) WarmCache(ctx context.Context) error {
	slog.Info("warming business rules cache")
	if err := e.store.Warm(ctx); err != nil {
		return err
	}
	slog.Info("business rules cache warmed")
	return nil
}

// ValidateOrder checks every item's availability and audits the
// outcome against the order.
func (e *Engine) ValidateOrder(ctx context.Context, orderID uuid.UUID, items []OrderItem) (*OrderValidationResult, error) {
	done := e.metrics.StartAvailabilityCheck()
	defer done()

	result, err := e.availability.ValidateOrderItems(ctx, items)
	if err != nil {
		return nil, err
	}

	ruleData := map[string]any{
		"items_checked": len(items),
		"is_valid":      result.IsValid,
		"errors_count":  len(result.Errors),
	}
	effect := "All items available"
	if !result.IsValid {
		effect = fmt.Sprintf("%d items unavailable", len(result.Errors))
	}
	e.audit.LogAvailabilityCheck(ctx, orderID, ruleData, effect)

	return result, nil
}

// CalculatePrice prices the order under the given strategy, auditing
// each applied rule and a summary record.
func (e *Engine) CalculatePrice(ctx context.Context, orderID uuid.UUID, items []PricingOrderItem, strategy CombinationStrategy) (*OrderPricingResult, error) {
	done := e.metrics.StartPricingCalculation()
	defer done()

	result, err := e.pricing.CalculateOrderPrice(ctx, items, strategy)
	if err != nil {
		return nil, err
	}

	for _, applied := range result.AppliedRules {
		ruleID := applied.RuleID
		e.audit.LogPricingApplication(ctx, orderID, &ruleID, map[string]any{
			"rule_type":       applied.RuleType,
			"description":     applied.Description,
			"discount_amount": applied.DiscountAmount,
		}, "Applied: "+applied.Description)
	}

	e.audit.LogPricingApplication(ctx, orderID, nil, map[string]any{
		"base_price":     result.BasePrice,
		"final_price":    result.FinalPrice,
		"total_discount": result.TotalDiscount,
		"rules_applied":  len(result.AppliedRules),
		"strategy":       strategy,
	}, fmt.Sprintf("Applied %d rules, discount: $%s", len(result.AppliedRules), result.TotalDiscount.StringFixed(2)))

	return result, nil
}

// EstimatePrepTime estimates preparation time for the items. Prep
// estimates are not audited.
func (e *Engine) EstimatePrepTime(ctx context.Context, items []OrderItem) (*PrepTimeEstimate, error) {
	done := e.metrics.StartPrepTimeEstimate()
	defer done()

	return e.prepTime.Estimate(ctx, items)
}

// AwardLoyaltyPoints calculates and awards points for a completed
// order, returning how many were awarded. A loyalty failure must
// never fail the order that triggered it, so errors are logged here
// and 0 is returned.
func (e *Engine) AwardLoyaltyPoints(ctx context.Context, orderID uuid.UUID, customerID int, orderTotal decimal.Decimal, items []LoyaltyOrderItem) int {
	done := e.metrics.StartLoyaltyCalculation()
	defer done()

	calculation, err := e.loyalty.CalculatePoints(ctx, orderTotal, items)
	if err != nil {
		slog.Error("loyalty calculation failed", "order_id", orderID, "customer_id", customerID, "err", err)
		return 0
	}

	customerLoyalty, err := e.loyalty.AwardPoints(ctx, customerID, calculation.TotalPoints)
	if err != nil {
		slog.Error("loyalty award failed", "order_id", orderID, "customer_id", customerID, "err", err)
		return 0
	}

	e.audit.LogLoyaltyAward(ctx, orderID, map[string]any{
		"customer_id":     customerID,
		"order_total":     orderTotal,
		"base_points":     calculation.BasePoints,
		"bonus_points":    calculation.BonusPoints,
		"total_points":    calculation.TotalPoints,
		"new_balance":     customerLoyalty.PointsBalance,
		"lifetime_points": customerLoyalty.LifetimePoints,
	}, fmt.Sprintf("Awarded %d points (base: %d, bonus: %d)",
		calculation.TotalPoints, calculation.BasePoints, calculation.BonusPoints))

	return calculation.TotalPoints
}
