package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shopcore/shopcore/internal/shared"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (OrderStatus, error) {
	switch OrderStatus(raw) {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return OrderStatus(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown order status %q", shared.ErrInvalidInput, raw)
	}
}

// Order is a placed order. TotalAmount is fixed at creation from the price
// snapshots of its lines; later product price edits never change it.
type Order struct {
	ID              int64       `json:"id"`
	Code            string      `json:"code"`
	ActorID         int64       `json:"actor_id"`
	Status          OrderStatus `json:"status"`
	TotalAmount     float64     `json:"total_amount"`
	ShippingAddress string      `json:"shipping_address"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Lines           []OrderLine `json:"lines,omitempty"`
}

// OrderLine is one product position within an order. UnitPrice is the
// snapshot taken at placement time.
type OrderLine struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// ResourceOwnerID implements the ownership overlay used by the guard.
func (o Order) ResourceOwnerID() int64 {
	return o.ActorID
}

// newOrderCode generates a human-readable order reference.
func newOrderCode() string {
	return "SO-" + strings.ToUpper(uuid.NewString()[:8])
}
