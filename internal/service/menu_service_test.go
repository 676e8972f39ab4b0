package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/perkhub/coffee-shop-backend/internal/models"
	"github.com/perkhub/coffee-shop-backend/internal/repository"
)

func TestMenuServiceList(t *testing.T) {
	t.Parallel()

	repo := newFakeCoffeeRepo(
		models.Coffee{ID: 1, Name: "Espresso", Price: decimal.RequireFromString("3.00")},
		models.Coffee{ID: 2, Name: "Latte", Price: decimal.RequireFromString("4.75")},
	)
	svc := NewMenuService(repo)

	page, err := svc.List(context.Background(), models.CoffeeQueryParams{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Total = %d, want 2", page.Total)
	}
	if page.Page != 1 || page.Limit != 10 {
		t.Errorf("defaults = page %d limit %d, want 1/10", page.Page, page.Limit)
	}
}

func TestMenuServiceListRejectsBadParams(t *testing.T) {
	t.Parallel()

	svc := NewMenuService(newFakeCoffeeRepo())
	cases := map[string]models.CoffeeQueryParams{
		"bad sort":       {Sort: "name"},
		"bad order":      {Sort: "price", Order: "sideways"},
		"bad page":       {Page: "0"},
		"limit too big":  {Limit: "500"},
		"negative price": {MinPrice: "-1"},
		"inverted range": {MinPrice: "5", MaxPrice: "2"},
	}
	for name, params := range cases {
		if _, err := svc.List(context.Background(), params); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", name, err)
		}
	}
}

func TestMenuServiceCreateValidates(t *testing.T) {
	t.Parallel()

	svc := NewMenuService(newFakeCoffeeRepo())

	_, err := svc.Create(context.Background(), models.Coffee{Name: "  ", Price: decimal.RequireFromString("3.00")})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("blank name: err = %v, want ErrValidation", err)
	}

	_, err = svc.Create(context.Background(), models.Coffee{Name: "Cortado", Price: decimal.Zero})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("zero price: err = %v, want ErrValidation", err)
	}

	created, err := svc.Create(context.Background(), models.Coffee{
		Name:  " Cortado ",
		Price: decimal.RequireFromString("3.75"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Name != "Cortado" {
		t.Errorf("Name = %q, want trimmed %q", created.Name, "Cortado")
	}
}

func TestMenuServiceCreateDuplicateName(t *testing.T) {
	t.Parallel()

	svc := NewMenuService(newFakeCoffeeRepo(
		models.Coffee{ID: 1, Name: "Espresso", Price: decimal.RequireFromString("3.00")},
	))

	_, err := svc.Create(context.Background(), models.Coffee{
		Name:  "Espresso",
		Price: decimal.RequireFromString("3.25"),
	})
	if !errors.Is(err, repository.ErrDuplicateCoffee) {
		t.Errorf("err = %v, want ErrDuplicateCoffee", err)
	}
}

func TestMenuServiceUpdate(t *testing.T) {
	t.Parallel()

	svc := NewMenuService(newFakeCoffeeRepo(
		models.Coffee{ID: 1, Name: "Espresso", Price: decimal.RequireFromString("3.00")},
	))

	newPrice := decimal.RequireFromString("3.50")
	updated, err := svc.Update(context.Background(), 1, models.CoffeeUpdate{Price: &newPrice})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Price.Equal(newPrice) {
		t.Errorf("Price = %s, want %s", updated.Price, newPrice)
	}
	if updated.Name != "Espresso" {
		t.Errorf("Name changed on partial update: %q", updated.Name)
	}

	blank := "   "
	if _, err := svc.Update(context.Background(), 1, models.CoffeeUpdate{Name: &blank}); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name: err = %v, want ErrValidation", err)
	}

	if _, err := svc.Update(context.Background(), 99, models.CoffeeUpdate{Price: &newPrice}); !errors.Is(err, repository.ErrCoffeeNotFound) {
		t.Errorf("missing coffee: err = %v, want ErrCoffeeNotFound", err)
	}
}

func TestMenuServiceDelete(t *testing.T) {
	t.Parallel()

	svc := NewMenuService(newFakeCoffeeRepo(
		models.Coffee{ID: 1, Name: "Espresso", Price: decimal.RequireFromString("3.00")},
	))

	if err := svc.Delete(context.Background(), 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(context.Background(), 1); !errors.Is(err, repository.ErrCoffeeNotFound) {
		t.Errorf("second delete: err = %v, want ErrCoffeeNotFound", err)
	}
}
