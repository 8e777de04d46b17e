package products

// ProductForm carries create/update input.
type ProductForm struct {
	Code     string  `json:"code" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Stock    int64   `json:"stock" validate:"gte=0"`
	IsActive bool    `json:"is_active"`
}

// RestockForm carries a stock replenishment request.
type RestockForm struct {
	Quantity int64 `json:"quantity" validate:"required,gte=1"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	OwnerID int64
	Active  *bool
	Limit   int
	Offset  int
}
