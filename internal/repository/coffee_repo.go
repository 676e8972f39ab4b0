package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/perkhub/coffee-shop-backend/internal/models"
)

type CoffeeRepo struct {
	db *sql.DB
}

func NewCoffeeRepo(db *sql.DB) *CoffeeRepo {
	return &CoffeeRepo{db: db}
}

const coffeeColumns = `id, name, coffee_type, price, rating, image_url, description, created_at, updated_at`

// ListCoffees runs the validated menu query and also returns the total
// row count for the filter, ignoring pagination.
func (r *CoffeeRepo) ListCoffees(ctx context.Context, q models.CoffeeQuery) ([]models.Coffee, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.Search != "" {
		where = append(where, "name ILIKE "+arg("%"+q.Search+"%"))
	}
	if q.Type != "" {
		where = append(where, "LOWER(coffee_type) = LOWER("+arg(q.Type)+")")
	}
	if q.MinPrice != nil {
		where = append(where, "price >= "+arg(*q.MinPrice))
	}
	if q.MaxPrice != nil {
		where = append(where, "price <= "+arg(*q.MaxPrice))
	}
	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM coffees"+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coffees: %w", err)
	}

	// SortField comes from a validated enum, never from raw input.
	orderBy := " ORDER BY id ASC"
	if q.SortField != "" {
		direction := "ASC"
		if q.SortDesc {
			direction = "DESC"
		}
		orderBy = fmt.Sprintf(" ORDER BY %s %s, id ASC", q.SortField, direction)
	}
	query := "SELECT " + coffeeColumns + " FROM coffees" + filter + orderBy +
		" LIMIT " + arg(q.Limit) + " OFFSET " + arg(q.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list coffees: %w", err)
	}
	defer rows.Close()

	coffees := []models.Coffee{}
	for rows.Next() {
		c, err := scanCoffee(rows)
		if err != nil {
			return nil, 0, err
		}
		coffees = append(coffees, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate coffees: %w", err)
	}
	return coffees, total, nil
}

func (r *CoffeeRepo) CoffeeByID(ctx context.Context, id int) (*models.Coffee, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+coffeeColumns+" FROM coffees WHERE id = $1", id)
	c, err := scanCoffee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCoffeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CoffeesByIDs loads the named coffees keyed by id. IDs without a row
// are simply absent from the map; callers decide whether that is an
// error.
func (r *CoffeeRepo) CoffeesByIDs(ctx context.Context, ids []int) (map[int]models.Coffee, error) {
	if len(ids) == 0 {
		return map[int]models.Coffee{}, nil
	}
	int64IDs := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		int64IDs[i] = int64(id)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+coffeeColumns+" FROM coffees WHERE id = ANY($1)", int64IDs)
	if err != nil {
		return nil, fmt.Errorf("load coffees: %w", err)
	}
	defer rows.Close()

	out := map[int]models.Coffee{}
	for rows.Next() {
		c, err := scanCoffee(rows)
		if err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coffees: %w", err)
	}
	return out, nil
}

// CreateCoffee inserts a menu item; a duplicate name yields
// ErrDuplicateCoffee.
func (r *CoffeeRepo) CreateCoffee(ctx context.Context, c *models.Coffee) (*models.Coffee, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO coffees (name, coffee_type, price, image_url, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+coffeeColumns,
		c.Name, c.CoffeeType, c.Price, c.ImageURL, c.Description)
	created, err := scanCoffee(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateCoffee
	}
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateCoffee applies a partial update; nil fields keep their current
// value.
func (r *CoffeeRepo) UpdateCoffee(ctx context.Context, id int, upd models.CoffeeUpdate) (*models.Coffee, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE coffees SET
			name        = COALESCE($2, name),
			coffee_type = COALESCE($3, coffee_type),
			price       = COALESCE($4, price),
			image_url   = COALESCE($5, image_url),
			description = COALESCE($6, description),
			updated_at  = NOW()
		WHERE id = $1
		RETURNING `+coffeeColumns,
		id, upd.Name, upd.CoffeeType, upd.Price, upd.ImageURL, upd.Description)
	updated, err := scanCoffee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCoffeeNotFound
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicateCoffee
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *CoffeeRepo) DeleteCoffee(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM coffees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete coffee: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete coffee: %w", err)
	}
	if affected == 0 {
		return ErrCoffeeNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoffee(row rowScanner) (models.Coffee, error) {
	var c models.Coffee
	err := row.Scan(&c.ID, &c.Name, &c.CoffeeType, &c.Price, &c.Rating,
		&c.ImageURL, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Coffee{}, err
		}
		return models.Coffee{}, fmt.Errorf("scan coffee: %w", err)
	}
	return c, nil
}
