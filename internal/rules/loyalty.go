package rules

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
)

// LoyaltyOrderItem is one order line considered for bonus points.
// Price is the unit price.
type LoyaltyOrderItem struct {
	CoffeeID int             `json:"coffee_id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// LoyaltyCalculation is the points breakdown for an order.
type LoyaltyCalculation struct {
	BasePoints  int             `json:"base_points"`
	BonusPoints int             `json:"bonus_points"`
	TotalPoints int             `json:"total_points"`
	OrderTotal  decimal.Decimal `json:"order_total"`
}

// CustomerLoyalty is a customer's points account.
type CustomerLoyalty struct {
	CustomerID     int `json:"customer_id"`
	PointsBalance  int `json:"points_balance"`
	LifetimePoints int `json:"lifetime_points"`
}

// LoyaltyStore persists customer point balances. SQLSource
// implements it.
type LoyaltyStore interface {
	AwardPoints(ctx context.Context, customerID, points int) (CustomerLoyalty, error)
	PointsBalance(ctx context.Context, customerID int) (int, error)
}

// LoyaltyEngine computes and awards loyalty points.
type LoyaltyEngine struct {
	store    *ConfigStore
	accounts LoyaltyStore
}

func NewLoyaltyEngine(store *ConfigStore, accounts LoyaltyStore) *LoyaltyEngine {
	return &LoyaltyEngine{store: store, accounts: accounts}
}

var (
	maxPoints = decimal.NewFromInt(math.MaxInt32)
	minPoints = decimal.NewFromInt(math.MinInt32)
)

// CalculatePoints computes base points from the order total and bonus
// points from per-coffee multipliers. Base points floor first; the
// bonus accumulates as a decimal across items and floors once at the
// end, so fractional bonuses from separate items still add up.
func (e *LoyaltyEngine) CalculatePoints(ctx context.Context, orderTotal decimal.Decimal, items []LoyaltyOrderItem) (*LoyaltyCalculation, error) {
	config, err := e.store.LoyaltyConfig(ctx)
	if err != nil {
		return nil, err
	}

	basePoints, err := decimalToPoints(orderTotal.Mul(config.PointsPerDollar), "points")
	if err != nil {
		return nil, err
	}

	bonusPointsDecimal := decimal.Zero
	for _, item := range items {
		multiplier, ok := config.BonusMultipliers[item.CoffeeID]
		if !ok {
			continue
		}
		itemTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		itemBasePoints := itemTotal.Mul(config.PointsPerDollar)
		bonusPointsDecimal = bonusPointsDecimal.Add(itemBasePoints.Mul(multiplier.Sub(decimal.NewFromInt(1))))
	}

	bonusPoints, err := decimalToPoints(bonusPointsDecimal, "bonus points")
	if err != nil {
		return nil, err
	}

	return &LoyaltyCalculation{
		BasePoints:  basePoints,
		BonusPoints: bonusPoints,
		TotalPoints: basePoints + bonusPoints,
		OrderTotal:  orderTotal,
	}, nil
}

// AwardPoints adds points to the customer's balance, creating the
// account when absent.
func (e *LoyaltyEngine) AwardPoints(ctx context.Context, customerID, points int) (CustomerLoyalty, error) {
	return e.accounts.AwardPoints(ctx, customerID, points)
}

// CustomerBalance returns the current balance, 0 for customers with
// no loyalty account.
func (e *LoyaltyEngine) CustomerBalance(ctx context.Context, customerID int) (int, error) {
	return e.accounts.PointsBalance(ctx, customerID)
}

// decimalToPoints floors d and converts to an int, rejecting values
// outside the 32-bit range.
func decimalToPoints(d decimal.Decimal, what string) (int, error) {
	f := d.Floor()
	if f.GreaterThan(maxPoints) || f.LessThan(minPoints) {
		return 0, newError(KindCalculation, "Failed to convert %s: %s out of range", what, f)
	}
	return int(f.IntPart()), nil
}
