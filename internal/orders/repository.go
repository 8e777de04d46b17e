package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcore/shopcore/internal/platform/db"
	"github.com/shopcore/shopcore/internal/shared"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertOrder writes the order header and its lines in one transaction and
// returns the stored order.
func (r *Repository) InsertOrder(ctx context.Context, order Order) (Order, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO orders (code, actor_id, status, total_amount, shipping_address, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id`,
			order.Code, order.ActorID, string(order.Status), order.TotalAmount, order.ShippingAddress).Scan(&id)
		if err != nil {
			return fmt.Errorf("orders: insert header: %w", err)
		}
		for _, line := range order.Lines {
			if _, err := tx.Exec(ctx, `INSERT INTO order_lines (order_id, product_id, quantity, unit_price, line_total)
VALUES ($1,$2,$3,$4,$5)`, id, line.ProductID, line.Quantity, line.UnitPrice, line.LineTotal); err != nil {
				return fmt.Errorf("orders: insert line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return r.Get(ctx, id)
}

// Get fetches an order with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	var order Order
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, code, actor_id, status, total_amount, shipping_address, created_at, updated_at
FROM orders WHERE id=$1`, id).
		Scan(&order.ID, &order.Code, &order.ActorID, &status, &order.TotalAmount, &order.ShippingAddress, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, shared.ErrNotFound
		}
		return Order{}, fmt.Errorf("orders: get: %w", err)
	}
	order.Status = OrderStatus(status)

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, quantity, unit_price, line_total
FROM order_lines WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("orders: get lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.LineTotal); err != nil {
			return Order{}, err
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Order{}, err
	}
	return order, nil
}

// UpdateStatus rewrites the order status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status OrderStatus) (Order, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return Order{}, fmt.Errorf("orders: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Order{}, shared.ErrNotFound
	}
	return r.Get(ctx, id)
}

// ListByActor returns the actor's orders, newest first, plus the total count.
func (r *Repository) ListByActor(ctx context.Context, actorID int64, limit, offset int) ([]Order, int, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, code, actor_id, status, total_amount, shipping_address, created_at, updated_at
FROM orders WHERE actor_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`, actorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("orders: list: %w", err)
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		var order Order
		var status string
		if err := rows.Scan(&order.ID, &order.Code, &order.ActorID, &status, &order.TotalAmount, &order.ShippingAddress, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, 0, err
		}
		order.Status = OrderStatus(status)
		items = append(items, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE actor_id=$1`, actorID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("orders: count: %w", err)
	}
	return items, total, nil
}
