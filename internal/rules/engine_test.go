package rules

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestEngineValidateOrderAudits(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	src.availability[2] = CoffeeAvailability{CoffeeID: 2, Status: OutOfStock}
	sink := &fakeSink{}
	engine := newTestEngine(src, &fakeWriter{}, &fakeQueue{}, newFakeAccounts(), sink)

	orderID := uuid.New()
	result, err := engine.ValidateOrder(context.Background(), orderID, []OrderItem{
		{CoffeeID: 1, Quantity: 1},
		{CoffeeID: 2, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("ValidateOrder() error: %v", err)
	}
	if result.IsValid {
		t.Error("IsValid = true, want false")
	}

	records := sink.byType("availability")
	if len(records) != 1 {
		t.Fatalf("availability audit records = %d, want 1", len(records))
	}
	if records[0].OrderID != orderID {
		t.Errorf("audit order id = %s, want %s", records[0].OrderID, orderID)
	}
	if records[0].Effect != "1 items unavailable" {
		t.Errorf("audit effect = %q, want %q", records[0].Effect, "1 items unavailable")
	}

	var data map[string]any
	if err := json.Unmarshal(records[0].RuleData, &data); err != nil {
		t.Fatalf("unmarshal rule_data: %v", err)
	}
	if data["items_checked"] != float64(2) || data["errors_count"] != float64(1) {
		t.Errorf("rule_data = %v, want items_checked 2, errors_count 1", data)
	}
}

func TestEngineValidateOrderPassEffect(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	sink := &fakeSink{}
	engine := newTestEngine(src, &fakeWriter{}, &fakeQueue{}, newFakeAccounts(), sink)

	if _, err := engine.ValidateOrder(context.Background(), uuid.New(), []OrderItem{{CoffeeID: 1, Quantity: 1}}); err != nil {
		t.Fatalf("ValidateOrder() error: %v", err)
	}
	records := sink.byType("availability")
	if len(records) != 1 || records[0].Effect != "All items available" {
		t.Errorf("records = %+v, want one 'All items available' record", records)
	}
}

func TestEngineCalculatePriceAuditsPerRuleAndSummary(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	ruleID := uuid.New()
	src.pricing = []PricingRule{
		activePromoRule(ruleID, 1, `{"discount_type":"percentage","discount_value":10,"description":"Launch promo"}`),
	}
	sink := &fakeSink{}
	engine := newTestEngine(src, &fakeWriter{}, &fakeQueue{}, newFakeAccounts(), sink)

	orderID := uuid.New()
	result, err := engine.CalculatePrice(context.Background(), orderID, singleItem("10", 2), BestPrice)
	if err != nil {
		t.Fatalf("CalculatePrice() error: %v", err)
	}
	if !result.FinalPrice.Equal(dec("18")) {
		t.Errorf("final price = %s, want 18", result.FinalPrice)
	}

	records := sink.byType("pricing")
	if len(records) != 2 {
		t.Fatalf("pricing audit records = %d, want 2 (per-rule + summary)", len(records))
	}
	perRule, summary := records[0], records[1]
	if perRule.RuleID == nil || *perRule.RuleID != ruleID {
		t.Errorf("per-rule record rule_id = %v, want %s", perRule.RuleID, ruleID)
	}
	if perRule.Effect != "Applied: Launch promo" {
		t.Errorf("per-rule effect = %q, want %q", perRule.Effect, "Applied: Launch promo")
	}
	if summary.RuleID != nil {
		t.Errorf("summary record rule_id = %v, want nil", summary.RuleID)
	}
	if summary.Effect != "Applied 1 rules, discount: $2.00" {
		t.Errorf("summary effect = %q, want %q", summary.Effect, "Applied 1 rules, discount: $2.00")
	}
}

func TestEngineAuditFailureDoesNotFailOperation(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	sink := &fakeSink{err: dbError(context.DeadlineExceeded, "insert audit record")}
	engine := newTestEngine(src, &fakeWriter{}, &fakeQueue{}, newFakeAccounts(), sink)

	result, err := engine.ValidateOrder(context.Background(), uuid.New(), []OrderItem{{CoffeeID: 1, Quantity: 1}})
	if err != nil {
		t.Fatalf("ValidateOrder() with failing audit sink error: %v", err)
	}
	if !result.IsValid {
		t.Error("IsValid = false, want true")
	}
}

func TestEngineEstimatePrepTimeNotAudited(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	src.prep[1] = CoffeeBaseTime{CoffeeID: 1, BaseMinutes: 4, PerAdditionalItem: 1}
	sink := &fakeSink{}
	engine := newTestEngine(src, &fakeWriter{}, &fakeQueue{delay: 3, position: 1}, newFakeAccounts(), sink)

	estimate, err := engine.EstimatePrepTime(context.Background(), []OrderItem{{CoffeeID: 1, Quantity: 1}})
	if err != nil {
		t.Fatalf("EstimatePrepTime() error: %v", err)
	}
	if estimate.EstimatedMinutes != 7 {
		t.Errorf("estimated minutes = %d, want 7", estimate.EstimatedMinutes)
	}
	if len(sink.records) != 0 {
		t.Errorf("audit records = %d, want 0 (prep estimates are advisory)", len(sink.records))
	}
}

func TestEngineAwardLoyaltyPoints(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	src.loyalty.BonusMultipliers[7] = dec("2")
	accounts := newFakeAccounts()
	sink := &fakeSink{}
	engine := newTestEngine(src, &fakeWriter{}, &fakeQueue{}, accounts, sink)

	orderID := uuid.New()
	points := engine.AwardLoyaltyPoints(context.Background(), orderID, 31, dec("100"), []LoyaltyOrderItem{
		{CoffeeID: 7, Quantity: 1, Price: dec("40")},
	})
	if points != 14 {
		t.Errorf("awarded points = %d, want 14", points)
	}

	balance, err := accounts.PointsBalance(context.Background(), 31)
	if err != nil {
		t.Fatalf("PointsBalance() error: %v", err)
	}
	if balance != 14 {
		t.Errorf("balance = %d, want 14", balance)
	}

	records := sink.byType("loyalty")
	if len(records) != 1 {
		t.Fatalf("loyalty audit records = %d, want 1", len(records))
	}
	if records[0].Effect != "Awarded 14 points (base: 10, bonus: 4)" {
		t.Errorf("effect = %q, want %q", records[0].Effect, "Awarded 14 points (base: 10, bonus: 4)")
	}
}

func TestEngineAwardLoyaltyPointsFailureReturnsZero(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	accounts := newFakeAccounts()
	accounts.err = dbError(context.DeadlineExceeded, "award points to customer 1")
	sink := &fakeSink{}
	engine := newTestEngine(src, &fakeWriter{}, &fakeQueue{}, accounts, sink)

	// The award fails but the call never propagates an error.
	points := engine.AwardLoyaltyPoints(context.Background(), uuid.New(), 1, dec("50"), nil)
	if points != 0 {
		t.Errorf("awarded points = %d, want 0 on storage failure", points)
	}
	if len(sink.byType("loyalty")) != 0 {
		t.Error("audit record written for a failed award")
	}
}

func TestEngineAwardLoyaltyPointsMissingConfigReturnsZero(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	src.loyalty = nil
	engine := newTestEngine(src, &fakeWriter{}, &fakeQueue{}, newFakeAccounts(), &fakeSink{})

	if points := engine.AwardLoyaltyPoints(context.Background(), uuid.New(), 1, dec("50"), nil); points != 0 {
		t.Errorf("awarded points = %d, want 0 without loyalty config", points)
	}
}

// TestEngineEndToEndOrderFlow walks the four operations the way the
// order workflow calls them: 2 units at $5.00 with a 10% promotional
// rule under best price.
func TestEngineEndToEndOrderFlow(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	src.pricing = []PricingRule{
		activePromoRule(uuid.New(), 1, `{"discount_type":"percentage","discount_value":10,"description":"Opening week"}`),
	}
	src.prep[1] = CoffeeBaseTime{CoffeeID: 1, BaseMinutes: 4, PerAdditionalItem: 2}
	accounts := newFakeAccounts()
	sink := &fakeSink{}
	engine := newTestEngine(src, &fakeWriter{}, &fakeQueue{}, accounts, sink)

	ctx := context.Background()
	orderID := uuid.New()

	validation, err := engine.ValidateOrder(ctx, orderID, []OrderItem{{CoffeeID: 1, Quantity: 2}})
	if err != nil {
		t.Fatalf("ValidateOrder() error: %v", err)
	}
	if !validation.IsValid {
		t.Fatalf("validation failed: %+v", validation.Errors)
	}

	pricing, err := engine.CalculatePrice(ctx, orderID, singleItem("5.00", 2), BestPrice)
	if err != nil {
		t.Fatalf("CalculatePrice() error: %v", err)
	}
	if !pricing.BasePrice.Equal(dec("10.00")) {
		t.Errorf("base price = %s, want 10.00", pricing.BasePrice)
	}
	if !pricing.FinalPrice.Equal(dec("9.00")) {
		t.Errorf("final price = %s, want 9.00", pricing.FinalPrice)
	}
	if len(pricing.AppliedRules) != 1 {
		t.Errorf("applied rules = %d, want 1", len(pricing.AppliedRules))
	}

	estimate, err := engine.EstimatePrepTime(ctx, []OrderItem{{CoffeeID: 1, Quantity: 2}})
	if err != nil {
		t.Fatalf("EstimatePrepTime() error: %v", err)
	}
	if estimate.EstimatedMinutes < 1 {
		t.Errorf("estimated minutes = %d, want >= 1", estimate.EstimatedMinutes)
	}

	points := engine.AwardLoyaltyPoints(ctx, orderID, 5, pricing.FinalPrice, []LoyaltyOrderItem{
		{CoffeeID: 1, Quantity: 2, Price: dec("5.00")},
	})
	if points != 0 {
		t.Errorf("awarded points = %d, want 0 (floor of 0.9)", points)
	}

	trail, err := engine.Audit().Records(ctx, orderID)
	if err != nil {
		t.Fatalf("Records() error: %v", err)
	}
	// availability summary + per-rule pricing + pricing summary + loyalty.
	if len(trail) != 4 {
		t.Errorf("audit trail length = %d, want 4", len(trail))
	}

	snap := engine.Metrics().Snapshot()
	if snap.AvailabilityChecks != 1 || snap.PricingCalculations != 1 || snap.PrepTimeEstimates != 1 || snap.LoyaltyCalculations != 1 {
		t.Errorf("operation counts = %+v, want one of each", snap)
	}
	if snap.CacheHits == 0 {
		t.Error("cache hits = 0, want reuse across operations")
	}
}

func TestEngineErrorsCarryHTTPStatus(t *testing.T) {
	t.Parallel()
	src := newFakeSource()
	calc := NewPrepTimeCalculator(NewConfigStore(src), &fakeQueue{})

	_, err := calc.Estimate(context.Background(), []OrderItem{{CoffeeID: 1, Quantity: 1}})
	if err == nil {
		t.Fatal("Estimate() want error")
	}
	kind, ok := KindOf(err)
	if !ok {
		t.Fatalf("KindOf(%v) = false, want engine error", err)
	}
	if kind.HTTPStatus() != 404 {
		t.Errorf("HTTPStatus() = %d, want 404", kind.HTTPStatus())
	}
	if !strings.Contains(err.Error(), "Coffee not found") {
		t.Errorf("error = %q, want coffee-not-found prefix", err)
	}
}
