package orders

// LineItemRequest references a product and a quantity to order.
type LineItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gte=1"`
}

// PlaceOrderRequest carries the order placement input.
type PlaceOrderRequest struct {
	Lines           []LineItemRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress string            `json:"shipping_address" validate:"required"`
}

// SetStatusRequest carries a status transition input.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}
