package products

import "time"

// Product represents a catalog item. Stock only changes through the atomic
// conditional decrement/increment pair; regular updates never touch it.
type Product struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     int64     `json:"stock"`
	OwnerID   int64     `json:"owner_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResourceOwnerID implements the ownership overlay used by the guard.
func (p Product) ResourceOwnerID() int64 {
	return p.OwnerID
}
