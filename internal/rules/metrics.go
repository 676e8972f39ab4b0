package rules

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// slowThreshold is the duration past which an operation is counted as
// slow and logged.
const slowThreshold = 100 * time.Millisecond

// opStats accumulates timing for one engine operation. All fields are
// updated with atomics so recording never contends with readers.
type opStats struct {
	count  atomic.Uint64
	micros atomic.Uint64
	slow   atomic.Uint64
}

func (s *opStats) record(name string, d time.Duration) {
	s.count.Add(1)
	s.micros.Add(uint64(d.Microseconds()))
	if d > slowThreshold {
		s.slow.Add(1)
		slog.Warn("slow rules operation", "op", name, "duration_ms", d.Milliseconds())
	}
}

// avgMillis is the mean duration in milliseconds, 0 when nothing has
// been recorded.
func (s *opStats) avgMillis() float64 {
	count := s.count.Load()
	if count == 0 {
		return 0
	}
	return float64(s.micros.Load()) / float64(count) / 1000
}

// Metrics tracks cache effectiveness and per-operation latency for
// the engine. The zero value is ready to use.
type Metrics struct {
	cacheHits    atomic.Uint64
	cacheMisses  atomic.Uint64
	availability opStats
	pricing      opStats
	prepTime     opStats
	loyalty      opStats
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) RecordCacheHit()  { m.cacheHits.Add(1) }
func (m *Metrics) RecordCacheMiss() { m.cacheMisses.Add(1) }

// CacheHitRate is hits/(hits+misses), 0 before any cache access.
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// StartAvailabilityCheck begins timing one availability check. The
// returned func records the elapsed time; call it with defer.
func (m *Metrics) StartAvailabilityCheck() func() {
	start := time.Now()
	return func() { m.availability.record("availability_check", time.Since(start)) }
}

func (m *Metrics) StartPricingCalculation() func() {
	start := time.Now()
	return func() { m.pricing.record("pricing_calculation", time.Since(start)) }
}

func (m *Metrics) StartPrepTimeEstimate() func() {
	start := time.Now()
	return func() { m.prepTime.record("prep_time_estimate", time.Since(start)) }
}

func (m *Metrics) StartLoyaltyCalculation() func() {
	start := time.Now()
	return func() { m.loyalty.record("loyalty_calculation", time.Since(start)) }
}

// Snapshot is the serializable view served by the admin metrics
// endpoint.
type Snapshot struct {
	CacheHitRate            float64 `json:"cache_hit_rate"`
	CacheHits               uint64  `json:"cache_hits"`
	CacheMisses             uint64  `json:"cache_misses"`
	AvailabilityChecks      uint64  `json:"availability_checks"`
	AvgAvailabilityTimeMs   float64 `json:"avg_availability_time_ms"`
	SlowAvailabilityChecks  uint64  `json:"slow_availability_checks"`
	PricingCalculations     uint64  `json:"pricing_calculations"`
	AvgPricingTimeMs        float64 `json:"avg_pricing_time_ms"`
	SlowPricingCalculations uint64  `json:"slow_pricing_calculations"`
	PrepTimeEstimates       uint64  `json:"prep_time_estimates"`
	AvgPrepTimeMs           float64 `json:"avg_prep_time_ms"`
	SlowPrepTimeEstimates   uint64  `json:"slow_prep_time_estimates"`
	LoyaltyCalculations     uint64  `json:"loyalty_calculations"`
	AvgLoyaltyTimeMs        float64 `json:"avg_loyalty_time_ms"`
	SlowLoyaltyCalculations uint64  `json:"slow_loyalty_calculations"`
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		CacheHitRate:            m.CacheHitRate(),
		CacheHits:               m.cacheHits.Load(),
		CacheMisses:             m.cacheMisses.Load(),
		AvailabilityChecks:      m.availability.count.Load(),
		AvgAvailabilityTimeMs:   m.availability.avgMillis(),
		SlowAvailabilityChecks:  m.availability.slow.Load(),
		PricingCalculations:     m.pricing.count.Load(),
		AvgPricingTimeMs:        m.pricing.avgMillis(),
		SlowPricingCalculations: m.pricing.slow.Load(),
		PrepTimeEstimates:       m.prepTime.count.Load(),
		AvgPrepTimeMs:           m.prepTime.avgMillis(),
		SlowPrepTimeEstimates:   m.prepTime.slow.Load(),
		LoyaltyCalculations:     m.loyalty.count.Load(),
		AvgLoyaltyTimeMs:        m.loyalty.avgMillis(),
		SlowLoyaltyCalculations: m.loyalty.slow.Load(),
	}
}
