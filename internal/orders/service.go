package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopcore/shopcore/internal/platform/db"
	"github.com/shopcore/shopcore/internal/products"
	"github.com/shopcore/shopcore/internal/rbac"
	"github.com/shopcore/shopcore/internal/shared"
)

// maxPlaceAttempts bounds retries when a placement loses a transient race
// (serialization failure or deadlock). Insufficient stock is deterministic
// and never retried.
const maxPlaceAttempts = 3

// RepositoryPort abstracts order persistence for the service.
type RepositoryPort interface {
	InsertOrder(ctx context.Context, order Order) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	UpdateStatus(ctx context.Context, id int64, status OrderStatus) (Order, error)
	ListByActor(ctx context.Context, actorID int64, limit, offset int) ([]Order, int, error)
}

// StockPort exposes the product snapshot and the atomic stock primitives.
type StockPort interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]products.Product, error)
	DecrementStock(ctx context.Context, id, qty int64) (bool, error)
	IncrementStock(ctx context.Context, id, qty int64) error
}

// Enqueuer hands successfully placed orders to the background pipeline.
type Enqueuer interface {
	EnqueueOrderPlaced(ctx context.Context, order Order) error
}

// Service coordinates order placement and status transitions.
type Service struct {
	repo     RepositoryPort
	stock    StockPort
	guard    *rbac.Guard
	audit    shared.AuditRecorder
	enqueuer Enqueuer
}

// NewService builds Service. Audit and enqueuer may be nil.
func NewService(repo RepositoryPort, stock StockPort, guard *rbac.Guard, audit shared.AuditRecorder, enqueuer Enqueuer) *Service {
	return &Service{repo: repo, stock: stock, guard: guard, audit: audit, enqueuer: enqueuer}
}

type mergedLine struct {
	productID int64
	quantity  int64
}

// mergeLines folds duplicate product references into one quantity each,
// preserving first-appearance order.
func mergeLines(lines []LineItemRequest) ([]mergedLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line item required", shared.ErrInvalidInput)
	}
	index := make(map[int64]int, len(lines))
	merged := make([]mergedLine, 0, len(lines))
	for _, line := range lines {
		if line.ProductID <= 0 {
			return nil, fmt.Errorf("%w: invalid product id", shared.ErrInvalidInput)
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", shared.ErrInvalidInput)
		}
		if at, ok := index[line.ProductID]; ok {
			merged[at].quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, mergedLine{productID: line.ProductID, quantity: line.Quantity})
	}
	return merged, nil
}

// PlaceOrder atomically reserves stock and records the order. Either the
// whole order commits with its stock decrements, or neither survives.
func (s *Service) PlaceOrder(ctx context.Context, actor shared.Actor, req PlaceOrderRequest) (Order, error) {
	if err := s.guard.Require(actor, shared.PermOrderPlace); err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return Order{}, fmt.Errorf("%w: shipping address required", shared.ErrInvalidInput)
	}
	merged, err := mergeLines(req.Lines)
	if err != nil {
		return Order{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxPlaceAttempts; attempt++ {
		order, err := s.placeOnce(ctx, actor, merged, req.ShippingAddress)
		if err == nil {
			return order, nil
		}
		if !db.IsRetryable(err) {
			return Order{}, err
		}
		lastErr = err
	}
	return Order{}, fmt.Errorf("%w: placement kept losing the race: %v", shared.ErrConflict, lastErr)
}

func (s *Service) placeOnce(ctx context.Context, actor shared.Actor, merged []mergedLine, shippingAddress string) (Order, error) {
	ids := make([]int64, len(merged))
	for i, line := range merged {
		ids[i] = line.productID
	}
	snapshot, err := s.stock.GetByIDs(ctx, ids)
	if err != nil {
		return Order{}, err
	}
	for _, line := range merged {
		if _, ok := snapshot[line.productID]; !ok {
			return Order{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, line.productID)
		}
	}

	// Each decrement is an indivisible conditional update; on any failure the
	// ones already applied are compensated before returning.
	applied := make([]mergedLine, 0, len(merged))
	for _, line := range merged {
		if err := ctx.Err(); err != nil {
			s.compensate(ctx, applied)
			return Order{}, err
		}
		ok, err := s.stock.DecrementStock(ctx, line.productID, line.quantity)
		if err != nil {
			s.compensate(ctx, applied)
			return Order{}, err
		}
		if !ok {
			s.compensate(ctx, applied)
			return Order{}, fmt.Errorf("%w: insufficient stock for product %d", shared.ErrConflict, line.productID)
		}
		applied = append(applied, line)
	}

	var total float64
	lines := make([]OrderLine, len(merged))
	for i, line := range merged {
		price := snapshot[line.productID].Price
		lineTotal := float64(line.quantity) * price
		total += lineTotal
		lines[i] = OrderLine{
			ProductID: line.productID,
			Quantity:  line.quantity,
			UnitPrice: price,
			LineTotal: lineTotal,
		}
	}

	order := Order{
		Code:            newOrderCode(),
		ActorID:         actor.ID,
		Status:          StatusPending,
		TotalAmount:     total,
		ShippingAddress: shippingAddress,
		Lines:           lines,
	}
	created, err := s.repo.InsertOrder(ctx, order)
	if err != nil {
		s.compensate(ctx, applied)
		return Order{}, err
	}

	s.record(ctx, actor, "order:place", created.ID, map[string]any{
		"code":  created.Code,
		"total": created.TotalAmount,
	})
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueOrderPlaced(ctx, created); err != nil {
			s.record(ctx, actor, "order:enqueue_failed", created.ID, map[string]any{"error": err.Error()})
		}
	}
	return created, nil
}

// compensate undoes the decrements applied within the current attempt. It
// runs on a detached context so cancellation of the request cannot strand a
// half-applied reservation.
func (s *Service) compensate(ctx context.Context, applied []mergedLine) {
	if len(applied) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, line := range applied {
		_ = s.stock.IncrementStock(ctx, line.productID, line.quantity)
	}
}

// SetStatus applies a status transition. Roles holding only the deliver
// permission may move orders to delivered and nothing else; full order
// managers may set any valid state, including regressions from terminal
// states.
func (s *Service) SetStatus(ctx context.Context, actor shared.Actor, orderID int64, raw string) (Order, error) {
	status, err := ParseStatus(raw)
	if err != nil {
		return Order{}, err
	}
	if err := s.guard.Require(actor, shared.PermOrderManage, shared.PermOrderDeliver); err != nil {
		return Order{}, err
	}
	restricted := !s.guard.Policy().HasWildcard(actor.Role) &&
		!s.guard.Policy().HasPermission(actor.Role, shared.PermOrderManage)
	if restricted && status != StatusDelivered {
		return Order{}, fmt.Errorf("%w: role %q may only mark orders delivered", shared.ErrForbidden, actor.Role)
	}
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return Order{}, err
	}
	updated, err := s.repo.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, actor, "order:set_status", orderID, map[string]any{"status": string(status)})
	return updated, nil
}

// Get returns an order. Actors holding only the own-variant of the view
// permission see just their own orders.
func (s *Service) Get(ctx context.Context, actor shared.Actor, orderID int64) (Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := s.guard.Evaluate(actor, []string{shared.PermOrderView}, order).Err(); err != nil {
		return Order{}, err
	}
	return order, nil
}

// ListMine returns the actor's own orders.
func (s *Service) ListMine(ctx context.Context, actor shared.Actor, limit, offset int) ([]Order, int, error) {
	decision := s.guard.Evaluate(actor, []string{shared.PermOrderView, rbac.OwnVariant(shared.PermOrderView)}, nil)
	if err := decision.Err(); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByActor(ctx, actor.ID, limit, offset)
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "orders",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
