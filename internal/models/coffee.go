package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coffee is one menu item.
type Coffee struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	CoffeeType  string          `json:"coffee_type"`
	Price       decimal.Decimal `json:"price"`
	Rating      float64         `json:"rating"`
	ImageURL    string          `json:"image_url"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CoffeeUpdate is a partial menu update; nil fields are left
// unchanged.
type CoffeeUpdate struct {
	Name        *string          `json:"name,omitempty"`
	CoffeeType  *string          `json:"coffee_type,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	Description *string          `json:"description,omitempty"`
}

// SortField names a sortable menu column.
type SortField string

const (
	SortByPrice  SortField = "price"
	SortByRating SortField = "rating"
)

// CoffeeQueryParams are the raw menu filters as they arrive on the
// query string, before validation.
type CoffeeQueryParams struct {
	Search   string
	Type     string
	MinPrice string
	MaxPrice string
	Sort     string
	Order    string
	Page     string
	Limit    string
}

// CoffeeQuery is a validated, normalized menu query. Zero SortField
// means no explicit ordering.
type CoffeeQuery struct {
	Search    string
	Type      string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	SortField SortField
	SortDesc  bool
	Page      int
	Limit     int
}

// Offset is the row offset implied by the page and limit.
func (q CoffeeQuery) Offset() int { return (q.Page - 1) * q.Limit }

// Validate normalizes the raw parameters, applies defaults and
// rejects out-of-range values. Price sorts default ascending, rating
// sorts descending; an explicit order overrides either.
func (p CoffeeQueryParams) Validate() (CoffeeQuery, error) {
	q := CoffeeQuery{
		Search: strings.TrimSpace(p.Search),
		Type:   strings.TrimSpace(p.Type),
		Page:   1,
		Limit:  10,
	}

	var err error
	if q.MinPrice, err = parsePriceFilter(p.MinPrice, "min_price"); err != nil {
		return CoffeeQuery{}, err
	}
	if q.MaxPrice, err = parsePriceFilter(p.MaxPrice, "max_price"); err != nil {
		return CoffeeQuery{}, err
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return CoffeeQuery{}, fmt.Errorf("min_price cannot be greater than max_price")
	}

	switch strings.ToLower(p.Sort) {
	case "":
	case "price":
		q.SortField = SortByPrice
	case "rating":
		q.SortField = SortByRating
		q.SortDesc = true
	default:
		return CoffeeQuery{}, fmt.Errorf("invalid sort field %q: must be 'price' or 'rating'", p.Sort)
	}
	switch strings.ToLower(p.Order) {
	case "":
	case "asc":
		q.SortDesc = false
	case "desc":
		q.SortDesc = true
	default:
		return CoffeeQuery{}, fmt.Errorf("invalid sort order %q: must be 'asc' or 'desc'", p.Order)
	}

	if p.Page != "" {
		page, err := strconv.Atoi(p.Page)
		if err != nil || page < 1 {
			return CoffeeQuery{}, fmt.Errorf("page must be a positive number")
		}
		q.Page = page
	}
	if p.Limit != "" {
		limit, err := strconv.Atoi(p.Limit)
		if err != nil || limit < 1 || limit > 100 {
			return CoffeeQuery{}, fmt.Errorf("limit must be between 1 and 100")
		}
		q.Limit = limit
	}
	return q, nil
}

func parsePriceFilter(s, name string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%s must be a valid number", name)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%s must be a positive number", name)
	}
	return &price, nil
}
