package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/perkhub/coffee-shop-backend/internal/models"
)

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

const orderColumns = `id, user_id, status, payment_status, total_price, estimated_prep_minutes, created_at, updated_at`

// CreateOrder inserts the order and its items in one transaction so a
// half-written order can never be observed.
func (r *OrderRepo) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, user_id, status, payment_status, total_price, estimated_prep_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		order.ID, order.UserID, string(order.Status), string(order.PaymentStatus),
		order.TotalPrice, order.EstimatedPrepMinutes,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, coffee_id, quantity, price_snapshot, subtotal)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			items[i].OrderID, items[i].CoffeeID, items[i].Quantity,
			items[i].PriceSnapshot, items[i].Subtotal,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order tx: %w", err)
	}
	committed = true
	return nil
}

func (r *OrderRepo) OrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id,
	).Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalPrice,
		&o.EstimatedPrepMinutes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return &o, nil
}

// OrdersByUser lists a user's orders newest first, optionally
// filtered by status.
func (r *OrderRepo) OrdersByUser(ctx context.Context, userID int, status *models.OrderStatus) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE user_id = $1"
	args := []any{userID}
	if status != nil {
		query += " AND status = $2"
		args = append(args, string(*status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalPrice,
			&o.EstimatedPrepMinutes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (r *OrderRepo) ItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, coffee_id, quantity, price_snapshot, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.CoffeeID, &it.Quantity,
			&it.PriceSnapshot, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

// UpdateStatus writes the order's kitchen status, and the payment
// status too when paymentStatus is non-nil.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, paymentStatus *models.PaymentStatus) error {
	var (
		res sql.Result
		err error
	)
	if paymentStatus != nil {
		res, err = r.db.ExecContext(ctx, `
			UPDATE orders SET status = $2, payment_status = $3, updated_at = NOW()
			WHERE id = $1`, id, string(status), string(*paymentStatus))
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE orders SET status = $2, updated_at = NOW()
			WHERE id = $1`, id, string(status))
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return requireRow(res, ErrOrderNotFound)
}

func (r *OrderRepo) UpdatePayment(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = NOW()
		WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return requireRow(res, ErrOrderNotFound)
}

func requireRow(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return missing
	}
	return nil
}
