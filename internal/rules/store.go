package rules

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCacheTTL is how long cached rule configuration stays fresh.
const DefaultCacheTTL = 60 * time.Second

// CoffeeAvailability is one row of availability configuration. A
// coffee without a row is treated as available.
type CoffeeAvailability struct {
	CoffeeID       int                `json:"coffee_id"`
	Status         AvailabilityStatus `json:"status"`
	Reason         string             `json:"reason,omitempty"`
	AvailableFrom  *time.Time         `json:"available_from,omitempty"`
	AvailableUntil *time.Time         `json:"available_until,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// PricingRule is one dynamic pricing rule. RuleConfig is the
// type-specific payload; a nil CoffeeIDs means the rule applies to
// every coffee.
type PricingRule struct {
	RuleID     uuid.UUID       `json:"rule_id"`
	RuleType   RuleType        `json:"rule_type"`
	Priority   int             `json:"priority"`
	RuleConfig json.RawMessage `json:"rule_config"`
	CoffeeIDs  []int           `json:"coffee_ids,omitempty"`
	IsActive   bool            `json:"is_active"`
	ValidFrom  time.Time       `json:"valid_from"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
}

// TimeBasedRuleConfig applies a discount during daily time windows.
type TimeBasedRuleConfig struct {
	TimeRanges    []TimeRange     `json:"time_ranges"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Description   string          `json:"description,omitempty"`
}

// QuantityBasedRuleConfig applies a discount once the order reaches a
// minimum total quantity.
type QuantityBasedRuleConfig struct {
	MinQuantity   int             `json:"min_quantity"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Description   string          `json:"description,omitempty"`
}

// PromotionalRuleConfig applies unconditionally while the rule is
// active and inside its validity window.
type PromotionalRuleConfig struct {
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Description   string          `json:"description,omitempty"`
}

// CoffeeBaseTime is the preparation time configuration for one coffee.
type CoffeeBaseTime struct {
	CoffeeID          int       `json:"coffee_id"`
	BaseMinutes       int       `json:"base_minutes"`
	PerAdditionalItem int       `json:"per_additional_item"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// LoyaltyConfig is the singleton loyalty program configuration.
// BonusMultipliers maps coffee id to earning multiplier.
type LoyaltyConfig struct {
	ConfigID         int                     `json:"config_id"`
	PointsPerDollar  decimal.Decimal         `json:"points_per_dollar"`
	BonusMultipliers map[int]decimal.Decimal `json:"bonus_multipliers"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// Source loads rule configuration from persistent storage. SQLSource
// is the Postgres implementation; tests substitute fakes.
type Source interface {
	AvailabilityRules(ctx context.Context) (map[int]CoffeeAvailability, error)
	PricingRules(ctx context.Context) ([]PricingRule, error)
	PrepTimeConfig(ctx context.Context) (map[int]CoffeeBaseTime, error)
	LoyaltyConfig(ctx context.Context) (*LoyaltyConfig, error)
}

type cacheState struct {
	availability map[int]CoffeeAvailability
	pricing      []PricingRule
	prepTime     map[int]CoffeeBaseTime
	loyalty      *LoyaltyConfig
	lastUpdated  map[Category]time.Time
}

// ConfigStore caches rule configuration per category with a TTL.
// Reads off the fresh cache share a read lock; a stale category is
// reloaded under the write lock with a second staleness check so
// concurrent readers trigger exactly one load.
type ConfigStore struct {
	src     Source
	ttl     time.Duration
	metrics *Metrics
	now     func() time.Time

	mu    sync.RWMutex
	state cacheState
}

func NewConfigStore(src Source) *ConfigStore {
	return &ConfigStore{
		src: src,
		ttl: DefaultCacheTTL,
		now: time.Now,
		state: cacheState{
			availability: map[int]CoffeeAvailability{},
			prepTime:     map[int]CoffeeBaseTime{},
			lastUpdated:  map[Category]time.Time{},
		},
	}
}

// NewConfigStoreWithMetrics also records cache hits and misses on m.
func NewConfigStoreWithMetrics(src Source, m *Metrics) *ConfigStore {
	s := NewConfigStore(src)
	s.metrics = m
	return s
}

func (s *ConfigStore) recordCacheHit() {
	if s.metrics != nil {
		s.metrics.RecordCacheHit()
	}
}

func (s *ConfigStore) recordCacheMiss() {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}
}

// isStaleLocked reports staleness for cat. Callers hold mu in either
// mode. A category that has never loaded is stale.
func (s *ConfigStore) isStaleLocked(cat Category) bool {
	last, ok := s.state.lastUpdated[cat]
	if !ok {
		return true
	}
	return s.now().Sub(last) > s.ttl
}

// refreshIfStale reloads cat from the source when its TTL has
// expired. A failed reload leaves the previous data in place and
// returns the error.
func (s *ConfigStore) refreshIfStale(ctx context.Context, cat Category) error {
	s.mu.RLock()
	fresh := !s.isStaleLocked(cat)
	s.mu.RUnlock()
	if fresh {
		s.recordCacheHit()
		return nil
	}

	s.recordCacheMiss()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if !s.isStaleLocked(cat) {
		return nil
	}
	return s.loadLocked(ctx, cat)
}

func (s *ConfigStore) loadLocked(ctx context.Context, cat Category) error {
	switch cat {
	case CategoryAvailability:
		rules, err := s.src.AvailabilityRules(ctx)
		if err != nil {
			return err
		}
		s.state.availability = rules
	case CategoryPricing:
		rules, err := s.src.PricingRules(ctx)
		if err != nil {
			return err
		}
		for i := range rules {
			if err := ValidatePricingRule(&rules[i]); err != nil {
				return err
			}
		}
		s.state.pricing = rules
	case CategoryPrepTime:
		cfg, err := s.src.PrepTimeConfig(ctx)
		if err != nil {
			return err
		}
		for id, c := range cfg {
			if err := ValidatePrepTime(id, c.BaseMinutes, c.PerAdditionalItem); err != nil {
				return err
			}
		}
		s.state.prepTime = cfg
	case CategoryLoyalty:
		cfg, err := s.src.LoyaltyConfig(ctx)
		if err != nil {
			return err
		}
		if err := ValidateLoyaltyConfig(cfg); err != nil {
			return err
		}
		s.state.loyalty = cfg
	default:
		return newError(KindInvalidConfiguration, "Unknown rule type: %s", cat)
	}
	s.state.lastUpdated[cat] = s.now()
	return nil
}

// AvailabilityRules returns the cached availability map, refreshing
// it first when stale.
func (s *ConfigStore) AvailabilityRules(ctx context.Context) (map[int]CoffeeAvailability, error) {
	if err := s.refreshIfStale(ctx, CategoryAvailability); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.state.availability), nil
}

// PricingRules returns the cached active rules sorted by descending
// priority, refreshing first when stale.
func (s *ConfigStore) PricingRules(ctx context.Context) ([]PricingRule, error) {
	if err := s.refreshIfStale(ctx, CategoryPricing); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.pricing), nil
}

// PrepTimeConfig returns the cached prep time map, refreshing first
// when stale.
func (s *ConfigStore) PrepTimeConfig(ctx context.Context) (map[int]CoffeeBaseTime, error) {
	if err := s.refreshIfStale(ctx, CategoryPrepTime); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.state.prepTime), nil
}

// LoyaltyConfig returns the cached loyalty configuration, refreshing
// first when stale.
func (s *ConfigStore) LoyaltyConfig(ctx context.Context) (*LoyaltyConfig, error) {
	if err := s.refreshIfStale(ctx, CategoryLoyalty); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.loyalty == nil {
		return nil, newError(KindConfigurationNotFound, "loyalty_config")
	}
	cfg := *s.state.loyalty
	cfg.BonusMultipliers = maps.Clone(cfg.BonusMultipliers)
	return &cfg, nil
}

// Invalidate forces the next read of cat to reload from the source.
// Invalidating an unknown or never-loaded category is a no-op.
func (s *ConfigStore) Invalidate(cat Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.lastUpdated, cat)
}

// Warm loads every category, stopping at the first failure.
func (s *ConfigStore) Warm(ctx context.Context) error {
	for _, cat := range Categories {
		if err := s.refreshIfStale(ctx, cat); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePricingRule checks that the rule's config payload decodes
// to the shape its type requires and that its values are sane. Load
// fails, and rule creation is rejected, on the first bad rule.
func ValidatePricingRule(rule *PricingRule) error {
	switch rule.RuleType {
	case TimeBased:
		var cfg TimeBasedRuleConfig
		if err := json.Unmarshal(rule.RuleConfig, &cfg); err != nil {
			return newError(KindInvalidPricingRule, "Invalid time_based rule config: %v", err)
		}
		if len(cfg.TimeRanges) == 0 {
			return newError(KindInvalidPricingRule, "time_based rule requires at least one time range")
		}
		for _, tr := range cfg.TimeRanges {
			if err := tr.Validate(); err != nil {
				return newError(KindInvalidPricingRule, "%v", err)
			}
		}
		return validateDiscountValue(cfg.DiscountType, cfg.DiscountValue)
	case QuantityBased:
		var cfg QuantityBasedRuleConfig
		if err := json.Unmarshal(rule.RuleConfig, &cfg); err != nil {
			return newError(KindInvalidPricingRule, "Invalid quantity_based rule config: %v", err)
		}
		if cfg.MinQuantity <= 0 {
			return newError(KindInvalidPricingRule, "min_quantity must be greater than 0")
		}
		return validateDiscountValue(cfg.DiscountType, cfg.DiscountValue)
	case Promotional:
		var cfg PromotionalRuleConfig
		if err := json.Unmarshal(rule.RuleConfig, &cfg); err != nil {
			return newError(KindInvalidPricingRule, "Invalid promotional rule config: %v", err)
		}
		return validateDiscountValue(cfg.DiscountType, cfg.DiscountValue)
	}
	return newError(KindInvalidPricingRule, "unknown rule type %q", rule.RuleType)
}

func validateDiscountValue(dt DiscountType, value decimal.Decimal) error {
	if value.IsNegative() {
		return newError(KindInvalidPricingRule, "Discount value must be non-negative")
	}
	if dt == Percentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return newError(KindInvalidPricingRule, "Percentage discount cannot exceed 100%%")
	}
	return nil
}

// ValidatePrepTime checks one coffee's prep time configuration.
func ValidatePrepTime(coffeeID, baseMinutes, perAdditionalItem int) error {
	if baseMinutes <= 0 {
		return newError(KindInvalidConfiguration, "Invalid base_minutes for coffee %d: must be positive", coffeeID)
	}
	if perAdditionalItem < 0 {
		return newError(KindInvalidConfiguration, "Invalid per_additional_item for coffee %d: must be non-negative", coffeeID)
	}
	return nil
}

// ValidateLoyaltyConfig checks the loyalty configuration's values.
func ValidateLoyaltyConfig(cfg *LoyaltyConfig) error {
	if cfg.PointsPerDollar.IsNegative() {
		return newError(KindInvalidConfiguration, "points_per_dollar must be non-negative")
	}
	for coffeeID, multiplier := range cfg.BonusMultipliers {
		if multiplier.IsNegative() {
			return newError(KindInvalidConfiguration, "Bonus multiplier for coffee %d must be non-negative", coffeeID)
		}
	}
	return nil
}
