package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/perkhub/coffee-shop-backend/internal/events"
	"github.com/perkhub/coffee-shop-backend/internal/models"
	"github.com/perkhub/coffee-shop-backend/internal/rules"
)

const maxItemQuantity = 50

type OrderRepo interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	OrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	OrdersByUser(ctx context.Context, userID int, status *models.OrderStatus) ([]models.Order, error)
	ItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, paymentStatus *models.PaymentStatus) error
	UpdatePayment(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error
}

// RulesEngine is the slice of the business rules engine the order
// workflow consumes.
type RulesEngine interface {
	ValidateOrder(ctx context.Context, orderID uuid.UUID, items []rules.OrderItem) (*rules.OrderValidationResult, error)
	CalculatePrice(ctx context.Context, orderID uuid.UUID, items []rules.PricingOrderItem, strategy rules.CombinationStrategy) (*rules.OrderPricingResult, error)
	EstimatePrepTime(ctx context.Context, items []rules.OrderItem) (*rules.PrepTimeEstimate, error)
	AwardLoyaltyPoints(ctx context.Context, orderID uuid.UUID, customerID int, orderTotal decimal.Decimal, items []rules.LoyaltyOrderItem) int
}

// EventPublisher emits order lifecycle events; events.Publisher
// implements it.
type EventPublisher interface {
	Publish(ctx context.Context, event events.OrderEvent)
}

// OrderService runs the order workflow: validation and pricing
// through the rules engine, persistence, and lifecycle transitions.
type OrderService struct {
	orders    OrderRepo
	coffees   CoffeeRepo
	engine    RulesEngine
	publisher EventPublisher
}

func NewOrderService(orders OrderRepo, coffees CoffeeRepo, engine RulesEngine, publisher EventPublisher) *OrderService {
	return &OrderService{orders: orders, coffees: coffees, engine: engine, publisher: publisher}
}

// NewOrderItem is one requested order line.
type NewOrderItem struct {
	CoffeeID int `json:"coffee_id"`
	Quantity int `json:"quantity"`
}

// UnavailableItemsError reports which items blocked an order. Handlers
// render it as a 409 with the per-item reasons.
type UnavailableItemsError struct {
	Failures []rules.ValidationFailure
}

func (e *UnavailableItemsError) Error() string {
	return fmt.Sprintf("%d items unavailable", len(e.Failures))
}

// OrderDetails is the full order view returned on create and get.
type OrderDetails struct {
	Order   models.Order              `json:"order"`
	Items   []models.OrderItem        `json:"items"`
	Pricing *rules.OrderPricingResult `json:"pricing,omitempty"`
	Prep    *rules.PrepTimeEstimate   `json:"prep_estimate,omitempty"`
}

// Create validates, prices and persists a new order, then publishes
// the created event. The engine's final price and prep estimate are
// captured on the order row.
func (s *OrderService) Create(ctx context.Context, userID int, requested []NewOrderItem) (*OrderDetails, error) {
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	seen := map[int]bool{}
	ids := make([]int, 0, len(requested))
	for _, item := range requested {
		if item.Quantity < 1 || item.Quantity > maxItemQuantity {
			return nil, fmt.Errorf("%w: quantity for coffee %d must be between 1 and %d", ErrValidation, item.CoffeeID, maxItemQuantity)
		}
		if seen[item.CoffeeID] {
			return nil, fmt.Errorf("%w: coffee %d appears more than once", ErrValidation, item.CoffeeID)
		}
		seen[item.CoffeeID] = true
		ids = append(ids, item.CoffeeID)
	}

	menu, err := s.coffees.CoffeesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := menu[id]; !ok {
			return nil, fmt.Errorf("%w: coffee %d does not exist", ErrValidation, id)
		}
	}

	orderID := uuid.New()

	ruleItems := make([]rules.OrderItem, len(requested))
	pricingItems := make([]rules.PricingOrderItem, len(requested))
	for i, item := range requested {
		ruleItems[i] = rules.OrderItem{CoffeeID: item.CoffeeID, Quantity: item.Quantity}
		pricingItems[i] = rules.PricingOrderItem{
			CoffeeID:  item.CoffeeID,
			Quantity:  item.Quantity,
			BasePrice: menu[item.CoffeeID].Price,
		}
	}

	validation, err := s.engine.ValidateOrder(ctx, orderID, ruleItems)
	if err != nil {
		return nil, err
	}
	if !validation.IsValid {
		return nil, &UnavailableItemsError{Failures: validation.Errors}
	}

	pricing, err := s.engine.CalculatePrice(ctx, orderID, pricingItems, rules.BestPrice)
	if err != nil {
		return nil, err
	}

	prep, err := s.engine.EstimatePrepTime(ctx, ruleItems)
	if err != nil {
		return nil, err
	}

	order := models.Order{
		ID:                   orderID,
		UserID:               userID,
		Status:               models.OrderPending,
		PaymentStatus:        models.PaymentUnpaid,
		TotalPrice:           pricing.FinalPrice,
		EstimatedPrepMinutes: prep.EstimatedMinutes,
	}
	items := make([]models.OrderItem, len(requested))
	for i, item := range requested {
		unit := menu[item.CoffeeID].Price
		items[i] = models.OrderItem{
			CoffeeID:      item.CoffeeID,
			Quantity:      item.Quantity,
			PriceSnapshot: unit,
			Subtotal:      unit.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
	}
	if err := s.orders.CreateOrder(ctx, &order, items); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.OrderEvent{
		EventType:  events.EventOrderCreated,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		TotalPrice: order.TotalPrice.StringFixed(2),
	})

	return &OrderDetails{Order: order, Items: items, Pricing: pricing, Prep: prep}, nil
}

// Get returns an order with its items. Customers only see their own
// orders; admins see every order.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID, requesterID int, requesterRole models.Role) (*OrderDetails, error) {
	order, err := s.orders.OrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != requesterID && requesterRole != models.RoleAdmin {
		return nil, ErrForbidden
	}
	items, err := s.orders.ItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetails{Order: *order, Items: items}, nil
}

// ListMine lists the requesting user's orders, optionally filtered by
// status.
func (s *OrderService) ListMine(ctx context.Context, userID int, statusFilter string) ([]models.Order, error) {
	var status *models.OrderStatus
	if statusFilter != "" {
		parsed, err := models.ParseOrderStatus(statusFilter)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		status = &parsed
	}
	return s.orders.OrdersByUser(ctx, userID, status)
}

// UpdateStatus moves an order through its lifecycle. Completing an
// order awards loyalty points; cancelling a paid completed order
// flips it to refunded. A loyalty failure never fails the update.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	order, err := s.orders.OrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == next {
		return order, nil
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: cannot move order from %s to %s", ErrInvalidTransition, order.Status, next)
	}

	var payment *models.PaymentStatus
	if next == models.OrderCancelled && order.Status == models.OrderCompleted && order.PaymentStatus == models.PaymentPaid {
		refunded := models.PaymentRefunded
		payment = &refunded
	}
	if err := s.orders.UpdateStatus(ctx, orderID, next, payment); err != nil {
		return nil, err
	}
	previous := order.Status
	order.Status = next
	if payment != nil {
		order.PaymentStatus = *payment
	}

	if next == models.OrderCompleted {
		s.awardLoyalty(ctx, order)
	}

	slog.Info("order status updated", "order_id", orderID, "from", previous, "to", next)
	s.publisher.Publish(ctx, events.OrderEvent{
		EventType: events.EventOrderStatusChanged,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    string(next),
	})
	return order, nil
}

// awardLoyalty feeds the completed order into the loyalty engine.
// The engine already logs and swallows its own failures.
func (s *OrderService) awardLoyalty(ctx context.Context, order *models.Order) {
	items, err := s.orders.ItemsByOrder(ctx, order.ID)
	if err != nil {
		slog.Error("load items for loyalty award", "order_id", order.ID, "err", err)
		return
	}
	loyaltyItems := make([]rules.LoyaltyOrderItem, len(items))
	for i, item := range items {
		loyaltyItems[i] = rules.LoyaltyOrderItem{
			CoffeeID: item.CoffeeID,
			Quantity: item.Quantity,
			Price:    item.PriceSnapshot,
		}
	}
	points := s.engine.AwardLoyaltyPoints(ctx, order.ID, order.UserID, order.TotalPrice, loyaltyItems)
	if points > 0 {
		slog.Info("loyalty points awarded", "order_id", order.ID, "customer_id", order.UserID, "points", points)
	}
}

// UpdatePayment moves the billing state: unpaid to paid, paid to
// refunded. Refunded is terminal.
func (s *OrderService) UpdatePayment(ctx context.Context, orderID uuid.UUID, next models.PaymentStatus) (*models.Order, error) {
	order, err := s.orders.OrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == next {
		return order, nil
	}
	if !order.PaymentStatus.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: cannot move payment from %s to %s", ErrInvalidTransition, order.PaymentStatus, next)
	}
	if err := s.orders.UpdatePayment(ctx, orderID, next); err != nil {
		return nil, err
	}
	order.PaymentStatus = next
	return order, nil
}
