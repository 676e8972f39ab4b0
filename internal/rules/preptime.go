package rules

import (
	"context"
)

// PrepTimeBreakdown itemizes how an estimate was built.
type PrepTimeBreakdown struct {
	BaseTime   int `json:"base_time"`
	QueueDelay int `json:"queue_delay"`
	TotalTime  int `json:"total_time"`
}

// PrepTimeEstimate is the preparation time estimate for an order.
// QueuePosition is how many orders are ahead of it.
type PrepTimeEstimate struct {
	EstimatedMinutes int               `json:"estimated_minutes"`
	QueuePosition    int               `json:"queue_position"`
	Breakdown        PrepTimeBreakdown `json:"breakdown"`
}

// QueueReader reports the current kitchen queue. SQLSource
// implements it.
type QueueReader interface {
	QueueStatus(ctx context.Context) (delayMinutes, position int, err error)
}

// PrepTimeCalculator estimates order preparation time from per-coffee
// configuration plus the live queue.
type PrepTimeCalculator struct {
	store *ConfigStore
	queue QueueReader
}

func NewPrepTimeCalculator(store *ConfigStore, queue QueueReader) *PrepTimeCalculator {
	return &PrepTimeCalculator{store: store, queue: queue}
}

// Estimate computes the prep estimate for the items. The returned
// estimate is always at least one minute.
func (c *PrepTimeCalculator) Estimate(ctx context.Context, items []OrderItem) (*PrepTimeEstimate, error) {
	baseTime, err := c.baseTime(ctx, items)
	if err != nil {
		return nil, err
	}

	queueDelay, queuePosition, err := c.queue.QueueStatus(ctx)
	if err != nil {
		return nil, err
	}

	totalTime := baseTime + queueDelay
	estimatedMinutes := max(totalTime, 1)

	return &PrepTimeEstimate{
		EstimatedMinutes: estimatedMinutes,
		QueuePosition:    queuePosition,
		Breakdown: PrepTimeBreakdown{
			BaseTime:   baseTime,
			QueueDelay: queueDelay,
			TotalTime:  totalTime,
		},
	}, nil
}

// baseTime sums each item's base minutes plus the per-additional-item
// time for quantities beyond the first. An item without prep
// configuration fails the whole estimate.
func (c *PrepTimeCalculator) baseTime(ctx context.Context, items []OrderItem) (int, error) {
	prepTimeConfig, err := c.store.PrepTimeConfig(ctx)
	if err != nil {
		return 0, err
	}

	totalTime := 0
	for _, item := range items {
		cfg, ok := prepTimeConfig[item.CoffeeID]
		if !ok {
			return 0, newError(KindCoffeeNotFound, "%d", item.CoffeeID)
		}
		totalTime += cfg.BaseMinutes
		if item.Quantity > 1 {
			totalTime += cfg.PerAdditionalItem * (item.Quantity - 1)
		}
	}
	return totalTime, nil
}
