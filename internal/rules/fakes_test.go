package rules

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeSource is an in-memory Source with per-category call counting
// and error injection.
type fakeSource struct {
	mu           sync.Mutex
	calls        map[Category]int
	fail         map[Category]error
	loadDelay    time.Duration
	availability map[int]CoffeeAvailability
	pricing      []PricingRule
	prep         map[int]CoffeeBaseTime
	loyalty      *LoyaltyConfig
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:        map[Category]int{},
		fail:         map[Category]error{},
		availability: map[int]CoffeeAvailability{},
		prep:         map[int]CoffeeBaseTime{},
		loyalty: &LoyaltyConfig{
			ConfigID:         1,
			PointsPerDollar:  decimal.RequireFromString("0.1"),
			BonusMultipliers: map[int]decimal.Decimal{},
			UpdatedAt:        time.Now(),
		},
	}
}

func (f *fakeSource) record(cat Category) error {
	f.mu.Lock()
	f.calls[cat]++
	err := f.fail[cat]
	f.mu.Unlock()
	if f.loadDelay > 0 {
		time.Sleep(f.loadDelay)
	}
	return err
}

func (f *fakeSource) callCount(cat Category) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[cat]
}

func (f *fakeSource) AvailabilityRules(ctx context.Context) (map[int]CoffeeAvailability, error) {
	if err := f.record(CategoryAvailability); err != nil {
		return nil, err
	}
	return f.availability, nil
}

func (f *fakeSource) PricingRules(ctx context.Context) ([]PricingRule, error) {
	if err := f.record(CategoryPricing); err != nil {
		return nil, err
	}
	return f.pricing, nil
}

func (f *fakeSource) PrepTimeConfig(ctx context.Context) (map[int]CoffeeBaseTime, error) {
	if err := f.record(CategoryPrepTime); err != nil {
		return nil, err
	}
	return f.prep, nil
}

func (f *fakeSource) LoyaltyConfig(ctx context.Context) (*LoyaltyConfig, error) {
	if err := f.record(CategoryLoyalty); err != nil {
		return nil, err
	}
	if f.loyalty == nil {
		return nil, newError(KindConfigurationNotFound, "loyalty_config")
	}
	return f.loyalty, nil
}

// fakeWriter records availability upserts.
type fakeWriter struct {
	mu      sync.Mutex
	upserts []CoffeeAvailability
	err     error
}

func (w *fakeWriter) UpsertAvailability(ctx context.Context, coffeeID int, status AvailabilityStatus, reason string) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.upserts = append(w.upserts, CoffeeAvailability{CoffeeID: coffeeID, Status: status, Reason: reason})
	return nil
}

// fakeQueue returns a fixed kitchen queue.
type fakeQueue struct {
	delay    int
	position int
	err      error
}

func (q *fakeQueue) QueueStatus(ctx context.Context) (int, int, error) {
	if q.err != nil {
		return 0, 0, q.err
	}
	return q.delay, q.position, nil
}

// fakeAccounts tracks loyalty balances in memory.
type fakeAccounts struct {
	mu       sync.Mutex
	balances map[int]CustomerLoyalty
	err      error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{balances: map[int]CustomerLoyalty{}}
}

func (a *fakeAccounts) AwardPoints(ctx context.Context, customerID, points int) (CustomerLoyalty, error) {
	if a.err != nil {
		return CustomerLoyalty{}, a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cl := a.balances[customerID]
	cl.CustomerID = customerID
	cl.PointsBalance += points
	cl.LifetimePoints += points
	a.balances[customerID] = cl
	return cl, nil
}

func (a *fakeAccounts) PointsBalance(ctx context.Context, customerID int) (int, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balances[customerID].PointsBalance, nil
}

// fakeSink captures audit records instead of persisting them.
type fakeSink struct {
	mu      sync.Mutex
	records []AuditRecord
	err     error
}

func (s *fakeSink) InsertAuditRecord(ctx context.Context, rec AuditRecord) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeSink) AuditRecordsByOrder(ctx context.Context, orderID uuid.UUID) ([]AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AuditRecord
	for _, rec := range s.records {
		if rec.OrderID == orderID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeSink) byType(ruleType string) []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AuditRecord
	for _, rec := range s.records {
		if rec.RuleType == ruleType {
			out = append(out, rec)
		}
	}
	return out
}

// newTestEngine assembles an Engine over the fakes.
func newTestEngine(src *fakeSource, writer *fakeWriter, queue *fakeQueue, accounts *fakeAccounts, sink *fakeSink) *Engine {
	metrics := NewMetrics()
	store := NewConfigStoreWithMetrics(src, metrics)
	return &Engine{
		availability: NewAvailabilityEngine(store, writer),
		pricing:      NewPricingEngine(store),
		prepTime:     NewPrepTimeCalculator(store, queue),
		loyalty:      NewLoyaltyEngine(store, accounts),
		audit:        NewAuditLogger(sink),
		metrics:      metrics,
		store:        store,
	}
}

func activePromoRule(id uuid.UUID, priority int, config string) PricingRule {
	return PricingRule{
		RuleID:     id,
		RuleType:   Promotional,
		Priority:   priority,
		RuleConfig: []byte(config),
		IsActive:   true,
	}
}
