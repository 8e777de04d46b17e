package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcore/shopcore/internal/shared"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, code, name, price, stock, owner_id, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Price, &p.Stock, &p.OwnerID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts a product and returns its ID.
func (r *Repository) Create(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products (code, name, price, stock, owner_id, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		p.Code, p.Name, p.Price, p.Stock, p.OwnerID, p.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("products: create: %w", err)
	}
	return id, nil
}

// Update rewrites mutable fields. Stock is deliberately excluded.
func (r *Repository) Update(ctx context.Context, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET code=$2, name=$3, price=$4, is_active=$5, updated_at=NOW() WHERE id=$1`,
		p.ID, p.Code, p.Name, p.Price, p.IsActive)
	if err != nil {
		return fmt.Errorf("products: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a product.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("products: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Get fetches a product by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, fmt.Errorf("products: get: %w", err)
	}
	return p, nil
}

// GetByIDs fetches a snapshot of the referenced products keyed by ID. Absent
// IDs are simply missing from the result.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) (map[int64]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("products: get by ids: %w", err)
	}
	defer rows.Close()
	result := make(map[int64]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// List returns products matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE ($1 = 0 OR owner_id = $1) AND ($2::bool IS NULL OR is_active = $2)
ORDER BY id
LIMIT $3 OFFSET $4`, filter.OwnerID, filter.Active, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("products: list: %w", err)
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products
WHERE ($1 = 0 OR owner_id = $1) AND ($2::bool IS NULL OR is_active = $2)`, filter.OwnerID, filter.Active).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("products: count: %w", err)
	}
	return items, total, nil
}

// DecrementStock subtracts qty from stock only if enough remains, as one
// indivisible read-modify-write. It reports whether the decrement applied.
func (r *Repository) DecrementStock(ctx context.Context, id, qty int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at=NOW() WHERE id=$1 AND stock >= $2`, id, qty)
	if err != nil {
		return false, fmt.Errorf("products: decrement stock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementStock adds qty back to stock. Used for restocks and to compensate
// decrements from an aborted order attempt.
func (r *Repository) IncrementStock(ctx context.Context, id, qty int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at=NOW() WHERE id=$1`, id, qty)
	if err != nil {
		return fmt.Errorf("products: increment stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
