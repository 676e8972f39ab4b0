package rules

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsCacheHitRate(t *testing.T) {
	t.Parallel()
	m := NewMetrics()
	if got := m.CacheHitRate(); got != 0 {
		t.Errorf("empty hit rate = %v, want 0", got)
	}

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	if got := m.CacheHitRate(); got != 0.75 {
		t.Errorf("hit rate = %v, want 0.75", got)
	}
}

func TestMetricsTimersCount(t *testing.T) {
	t.Parallel()
	m := NewMetrics()
	for i := 0; i < 3; i++ {
		done := m.StartPricingCalculation()
		done()
	}
	done := m.StartAvailabilityCheck()
	done()

	snap := m.Snapshot()
	if snap.PricingCalculations != 3 {
		t.Errorf("pricing count = %d, want 3", snap.PricingCalculations)
	}
	if snap.AvailabilityChecks != 1 {
		t.Errorf("availability count = %d, want 1", snap.AvailabilityChecks)
	}
	if snap.PrepTimeEstimates != 0 || snap.LoyaltyCalculations != 0 {
		t.Errorf("unused counters moved: %+v", snap)
	}
}

func TestMetricsSlowOperations(t *testing.T) {
	t.Parallel()
	var s opStats
	s.record("test_op", 50*time.Millisecond)
	s.record("test_op", 150*time.Millisecond)
	s.record("test_op", slowThreshold)

	if got := s.slow.Load(); got != 1 {
		t.Errorf("slow count = %d, want 1 (threshold itself is not slow)", got)
	}
	if got := s.count.Load(); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}

func TestMetricsAverageMillis(t *testing.T) {
	t.Parallel()
	var s opStats
	if got := s.avgMillis(); got != 0 {
		t.Errorf("empty average = %v, want 0", got)
	}
	s.record("test_op", 10*time.Millisecond)
	s.record("test_op", 30*time.Millisecond)
	if got := s.avgMillis(); got != 20 {
		t.Errorf("average = %v ms, want 20", got)
	}
}

func TestMetricsConcurrentRecording(t *testing.T) {
	t.Parallel()
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordCacheHit()
				done := m.StartLoyaltyCalculation()
				done()
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.CacheHits != 2000 {
		t.Errorf("cache hits = %d, want 2000", snap.CacheHits)
	}
	if snap.LoyaltyCalculations != 2000 {
		t.Errorf("loyalty count = %d, want 2000", snap.LoyaltyCalculations)
	}
}
