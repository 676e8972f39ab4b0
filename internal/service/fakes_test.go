package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/perkhub/coffee-shop-backend/internal/events"
	"github.com/perkhub/coffee-shop-backend/internal/models"
	"github.com/perkhub/coffee-shop-backend/internal/repository"
	"github.com/perkhub/coffee-shop-backend/internal/rules"
)

// fakeCoffeeRepo serves a fixed menu from memory.
type fakeCoffeeRepo struct {
	coffees map[int]models.Coffee
}

func newFakeCoffeeRepo(coffees ...models.Coffee) *fakeCoffeeRepo {
	r := &fakeCoffeeRepo{coffees: map[int]models.Coffee{}}
	for _, c := range coffees {
		r.coffees[c.ID] = c
	}
	return r
}

func (r *fakeCoffeeRepo) ListCoffees(ctx context.Context, q models.CoffeeQuery) ([]models.Coffee, int, error) {
	out := []models.Coffee{}
	for _, c := range r.coffees {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *fakeCoffeeRepo) CoffeeByID(ctx context.Context, id int) (*models.Coffee, error) {
	c, ok := r.coffees[id]
	if !ok {
		return nil, repository.ErrCoffeeNotFound
	}
	return &c, nil
}

func (r *fakeCoffeeRepo) CoffeesByIDs(ctx context.Context, ids []int) (map[int]models.Coffee, error) {
	out := map[int]models.Coffee{}
	for _, id := range ids {
		if c, ok := r.coffees[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (r *fakeCoffeeRepo) CreateCoffee(ctx context.Context, c *models.Coffee) (*models.Coffee, error) {
	for _, existing := range r.coffees {
		if existing.Name == c.Name {
			return nil, repository.ErrDuplicateCoffee
		}
	}
	c.ID = len(r.coffees) + 1
	r.coffees[c.ID] = *c
	return c, nil
}

func (r *fakeCoffeeRepo) UpdateCoffee(ctx context.Context, id int, upd models.CoffeeUpdate) (*models.Coffee, error) {
	c, ok := r.coffees[id]
	if !ok {
		return nil, repository.ErrCoffeeNotFound
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Price != nil {
		c.Price = *upd.Price
	}
	r.coffees[id] = c
	return &c, nil
}

func (r *fakeCoffeeRepo) DeleteCoffee(ctx context.Context, id int) error {
	if _, ok := r.coffees[id]; !ok {
		return repository.ErrCoffeeNotFound
	}
	delete(r.coffees, id)
	return nil
}

// fakeOrderRepo keeps orders and items in memory.
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]models.Order
	items  map[uuid.UUID][]models.OrderItem
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: map[uuid.UUID]models.Order{},
		items:  map[uuid.UUID][]models.OrderItem{},
	}
}

func (r *fakeOrderRepo) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	r.orders[order.ID] = *order
	for i := range items {
		items[i].ID = i + 1
		items[i].OrderID = order.ID
	}
	r.items[order.ID] = items
	return nil
}

func (r *fakeOrderRepo) OrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (r *fakeOrderRepo) OrdersByUser(ctx context.Context, userID int, status *models.OrderStatus) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Order{}
	for _, o := range r.orders {
		if o.UserID != userID {
			continue
		}
		if status != nil && o.Status != *status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *fakeOrderRepo) ItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[orderID], nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, paymentStatus *models.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	if paymentStatus != nil {
		o.PaymentStatus = *paymentStatus
	}
	r.orders[id] = o
	return nil
}

func (r *fakeOrderRepo) UpdatePayment(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.PaymentStatus = status
	r.orders[id] = o
	return nil
}

// fakeEngine returns canned rules-engine results and records loyalty
// awards.
type fakeEngine struct {
	validation   *rules.OrderValidationResult
	pricing      *rules.OrderPricingResult
	prep         *rules.PrepTimeEstimate
	validateErr  error
	priceErr     error
	prepErr      error
	awardedTo    []uuid.UUID
	awardedTotal decimal.Decimal
	points       int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		validation: &rules.OrderValidationResult{IsValid: true, Errors: []rules.ValidationFailure{}},
		pricing: &rules.OrderPricingResult{
			BasePrice:     decimal.RequireFromString("10.00"),
			FinalPrice:    decimal.RequireFromString("9.00"),
			TotalDiscount: decimal.RequireFromString("1.00"),
			AppliedRules:  []rules.AppliedPricingRule{},
		},
		prep:   &rules.PrepTimeEstimate{EstimatedMinutes: 7, Breakdown: rules.PrepTimeBreakdown{BaseTime: 7, TotalTime: 7}},
		points: 14,
	}
}

func (e *fakeEngine) ValidateOrder(ctx context.Context, orderID uuid.UUID, items []rules.OrderItem) (*rules.OrderValidationResult, error) {
	if e.validateErr != nil {
		return nil, e.validateErr
	}
	return e.validation, nil
}

func (e *fakeEngine) CalculatePrice(ctx context.Context, orderID uuid.UUID, items []rules.PricingOrderItem, strategy rules.CombinationStrategy) (*rules.OrderPricingResult, error) {
	if e.priceErr != nil {
		return nil, e.priceErr
	}
	return e.pricing, nil
}

func (e *fakeEngine) EstimatePrepTime(ctx context.Context, items []rules.OrderItem) (*rules.PrepTimeEstimate, error) {
	if e.prepErr != nil {
		return nil, e.prepErr
	}
	return e.prep, nil
}

func (e *fakeEngine) AwardLoyaltyPoints(ctx context.Context, orderID uuid.UUID, customerID int, orderTotal decimal.Decimal, items []rules.LoyaltyOrderItem) int {
	e.awardedTo = append(e.awardedTo, orderID)
	e.awardedTotal = orderTotal
	return e.points
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event events.OrderEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) byType(eventType string) []events.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []events.OrderEvent{}
	for _, e := range p.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeUserRepo and fakeTokenRepo back the auth service tests.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int]models.User{}}
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, email, passwordHash string, role models.Role) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return nil, repository.ErrDuplicateEmail
		}
	}
	u := models.User{ID: r.nextID, Email: email, PasswordHash: passwordHash, Role: role, CreatedAt: time.Now()}
	r.users[u.ID] = u
	r.nextID++
	return &u, nil
}

func (r *fakeUserRepo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) UserByID(ctx context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

type storedToken struct {
	userID    int
	expiresAt time.Time
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]storedToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: map[string]storedToken{}}
}

func (r *fakeTokenRepo) StoreRefreshToken(ctx context.Context, tokenHash string, userID int, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenHash] = storedToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (r *fakeTokenRepo) RefreshTokenUser(ctx context.Context, tokenHash string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	if !ok || time.Now().After(t.expiresAt) {
		return 0, repository.ErrTokenNotFound
	}
	return t.userID, nil
}

func (r *fakeTokenRepo) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, tokenHash)
	return nil
}

// fakeReviewRepo keeps reviews in memory with the unique
// (user, coffee) constraint.
type fakeReviewRepo struct {
	mu      sync.Mutex
	nextID  int
	reviews map[int]models.Review
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{nextID: 1, reviews: map[int]models.Review{}}
}

func (r *fakeReviewRepo) CreateReview(ctx context.Context, rev *models.Review) (*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.UserID == rev.UserID && existing.CoffeeID == rev.CoffeeID {
			return nil, repository.ErrDuplicateReview
		}
	}
	created := *rev
	created.ID = r.nextID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	r.reviews[created.ID] = created
	r.nextID++
	return &created, nil
}

func (r *fakeReviewRepo) ReviewByID(ctx context.Context, id int) (*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rev, ok := r.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	return &rev, nil
}

func (r *fakeReviewRepo) UpdateReview(ctx context.Context, id, rating int, comment string) (*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rev, ok := r.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	rev.Rating = rating
	rev.Comment = comment
	rev.UpdatedAt = time.Now()
	r.reviews[id] = rev
	return &rev, nil
}

func (r *fakeReviewRepo) DeleteReview(ctx context.Context, id, coffeeID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[id]; !ok {
		return repository.ErrReviewNotFound
	}
	delete(r.reviews, id)
	return nil
}

func (r *fakeReviewRepo) ReviewsByCoffee(ctx context.Context, coffeeID int) ([]models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Review{}
	for _, rev := range r.reviews {
		if rev.CoffeeID == coffeeID {
			out = append(out, rev)
		}
	}
	return out, nil
}
