package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/perkhub/coffee-shop-backend/internal/models"
)

type CoffeeRepo interface {
	ListCoffees(ctx context.Context, q models.CoffeeQuery) ([]models.Coffee, int, error)
	CoffeeByID(ctx context.Context, id int) (*models.Coffee, error)
	CoffeesByIDs(ctx context.Context, ids []int) (map[int]models.Coffee, error)
	CreateCoffee(ctx context.Context, c *models.Coffee) (*models.Coffee, error)
	UpdateCoffee(ctx context.Context, id int, upd models.CoffeeUpdate) (*models.Coffee, error)
	DeleteCoffee(ctx context.Context, id int) error
}

// MenuService covers the coffee menu: public browsing plus the
// admin-only CRUD.
type MenuService struct {
	coffees CoffeeRepo
}

func NewMenuService(coffees CoffeeRepo) *MenuService {
	return &MenuService{coffees: coffees}
}

// MenuPage is one page of menu results.
type MenuPage struct {
	Coffees []models.Coffee `json:"coffees"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
}

func (s *MenuService) List(ctx context.Context, params models.CoffeeQueryParams) (*MenuPage, error) {
	q, err := params.Validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	coffees, total, err := s.coffees.ListCoffees(ctx, q)
	if err != nil {
		return nil, err
	}
	return &MenuPage{Coffees: coffees, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

func (s *MenuService) Get(ctx context.Context, id int) (*models.Coffee, error) {
	return s.coffees.CoffeeByID(ctx, id)
}

func (s *MenuService) Create(ctx context.Context, c models.Coffee) (*models.Coffee, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := validateCoffee(c.Name, c.Price); err != nil {
		return nil, err
	}
	return s.coffees.CreateCoffee(ctx, &c)
}

func (s *MenuService) Update(ctx context.Context, id int, upd models.CoffeeUpdate) (*models.Coffee, error) {
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		upd.Name = &trimmed
		if trimmed == "" || len(trimmed) > 100 {
			return nil, fmt.Errorf("%w: name is required and must be at most 100 characters", ErrValidation)
		}
	}
	if upd.Price != nil && !upd.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	return s.coffees.UpdateCoffee(ctx, id, upd)
}

func (s *MenuService) Delete(ctx context.Context, id int) error {
	return s.coffees.DeleteCoffee(ctx, id)
}

func validateCoffee(name string, price decimal.Decimal) error {
	if name == "" || len(name) > 100 {
		return fmt.Errorf("%w: name is required and must be at most 100 characters", ErrValidation)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	return nil
}
