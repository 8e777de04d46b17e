package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/shopcore/internal/products"
	"github.com/shopcore/shopcore/internal/rbac"
	"github.com/shopcore/shopcore/internal/shared"
)

type memoryStock struct {
	mu           sync.Mutex
	items        map[int64]products.Product
	decrementErr func(id int64) error
}

func newMemoryStock(items ...products.Product) *memoryStock {
	m := &memoryStock{items: make(map[int64]products.Product, len(items))}
	for _, p := range items {
		m.items[p.ID] = p
	}
	return m
}

func (m *memoryStock) GetByIDs(_ context.Context, ids []int64) (map[int64]products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]products.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.items[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memoryStock) DecrementStock(_ context.Context, id, qty int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.decrementErr != nil {
		if err := m.decrementErr(id); err != nil {
			return false, err
		}
	}
	p, ok := m.items[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	m.items[id] = p
	return true, nil
}

func (m *memoryStock) IncrementStock(_ context.Context, id, qty int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Stock += qty
	m.items[id] = p
	return nil
}

func (m *memoryStock) stockOf(id int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Stock
}

type memoryOrderRepo struct {
	mu        sync.Mutex
	seq       int64
	orders    map[int64]Order
	insertErr error
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: make(map[int64]Order)}
}

func (r *memoryOrderRepo) InsertOrder(_ context.Context, order Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return Order{}, r.insertErr
	}
	r.seq++
	order.ID = r.seq
	for i := range order.Lines {
		order.Lines[i].ID = int64(i + 1)
		order.Lines[i].OrderID = order.ID
	}
	r.orders[order.ID] = order
	return order, nil
}

func (r *memoryOrderRepo) Get(_ context.Context, id int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	return order, nil
}

func (r *memoryOrderRepo) UpdateStatus(_ context.Context, id int64, status OrderStatus) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	order.Status = status
	r.orders[id] = order
	return order, nil
}

func (r *memoryOrderRepo) ListByActor(_ context.Context, actorID int64, _, _ int) ([]Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, order := range r.orders {
		if order.ActorID == actorID {
			out = append(out, order)
		}
	}
	return out, len(out), nil
}

type captureEnqueuer struct {
	mu     sync.Mutex
	orders []Order
}

func (c *captureEnqueuer) EnqueueOrderPlaced(_ context.Context, order Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append(c.orders, order)
	return nil
}

func newTestService(repo RepositoryPort, stock StockPort, enqueuer Enqueuer) *Service {
	return NewService(repo, stock, rbac.NewGuard(rbac.DefaultPolicy()), nil, enqueuer)
}

func product(id int64, price float64, stock int64) products.Product {
	return products.Product{ID: id, Code: "P", Name: "product", Price: price, Stock: stock, IsActive: true}
}

var customer = shared.Actor{ID: 10, Role: "customer"}

func TestPlaceOrderRequiresPermission(t *testing.T) {
	svc := newTestService(newMemoryOrderRepo(), newMemoryStock(), nil)

	_, err := svc.PlaceOrder(context.Background(), shared.Actor{}, PlaceOrderRequest{})
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = svc.PlaceOrder(context.Background(), shared.Actor{ID: 4, Role: "delivery"}, PlaceOrderRequest{
		Lines:           []LineItemRequest{{ProductID: 1, Quantity: 1}},
		ShippingAddress: "somewhere",
	})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestPlaceOrderValidatesInput(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 5))
	svc := newTestService(newMemoryOrderRepo(), stock, nil)

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []LineItemRequest{{ProductID: 1, Quantity: 1}},
		ShippingAddress: "   ",
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{ShippingAddress: "somewhere"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []LineItemRequest{{ProductID: 1, Quantity: 0}},
		ShippingAddress: "somewhere",
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	require.Equal(t, int64(5), stock.stockOf(1), "rejected input must not touch stock")
}

func TestPlaceOrderMergesDuplicateLines(t *testing.T) {
	stock := newMemoryStock(product(1, 4.5, 10))
	repo := newMemoryOrderRepo()
	enq := &captureEnqueuer{}
	svc := newTestService(repo, stock, enq)

	order, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines: []LineItemRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 1, Quantity: 3},
		},
		ShippingAddress: "12 Main St",
	})
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	require.Equal(t, int64(5), order.Lines[0].Quantity)
	require.InDelta(t, 22.5, order.TotalAmount, 1e-9)
	require.Equal(t, int64(5), stock.stockOf(1))
	require.Equal(t, StatusPending, order.Status)
	require.NotEmpty(t, order.Code)
	require.Len(t, enq.orders, 1)
}

func TestPlaceOrderPreservesFirstAppearanceOrder(t *testing.T) {
	stock := newMemoryStock(product(1, 1, 10), product(2, 2, 10))
	svc := newTestService(newMemoryOrderRepo(), stock, nil)

	order, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines: []LineItemRequest{
			{ProductID: 2, Quantity: 1},
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 4},
		},
		ShippingAddress: "12 Main St",
	})
	require.NoError(t, err)
	require.Len(t, order.Lines, 2)
	require.Equal(t, int64(2), order.Lines[0].ProductID)
	require.Equal(t, int64(5), order.Lines[0].Quantity)
	require.Equal(t, int64(1), order.Lines[1].ProductID)
}

func TestPlaceOrderTotalIsPriceSnapshot(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 10), product(2, 2.25, 10))
	svc := newTestService(newMemoryOrderRepo(), stock, nil)

	order, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines: []LineItemRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 4},
		},
		ShippingAddress: "12 Main St",
	})
	require.NoError(t, err)

	var sum float64
	for _, line := range order.Lines {
		require.InDelta(t, float64(line.Quantity)*line.UnitPrice, line.LineTotal, 1e-9)
		sum += line.LineTotal
	}
	require.InDelta(t, sum, order.TotalAmount, 1e-9)
	require.InDelta(t, 29.0, order.TotalAmount, 1e-9)
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 5))
	repo := newMemoryOrderRepo()
	svc := newTestService(repo, stock, nil)

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines: []LineItemRequest{
			{ProductID: 1, Quantity: 1},
			{ProductID: 99, Quantity: 1},
		},
		ShippingAddress: "12 Main St",
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, int64(5), stock.stockOf(1), "no decrement before the snapshot is complete")
	require.Empty(t, repo.orders)
}

func TestPlaceOrderInsufficientStockRollsBack(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 5), product(2, 3, 1))
	repo := newMemoryOrderRepo()
	svc := newTestService(repo, stock, nil)

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines: []LineItemRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 2},
		},
		ShippingAddress: "12 Main St",
	})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, int64(5), stock.stockOf(1), "applied decrement must be compensated")
	require.Equal(t, int64(1), stock.stockOf(2))
	require.Empty(t, repo.orders)
}

func TestPlaceOrderPersistFailureRestoresStock(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 5))
	repo := newMemoryOrderRepo()
	repo.insertErr = errors.New("persist failed")
	svc := newTestService(repo, stock, nil)

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []LineItemRequest{{ProductID: 1, Quantity: 3}},
		ShippingAddress: "12 Main St",
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, int64(5), stock.stockOf(1))
}

func TestPlaceOrderCancelledContextRestoresStock(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 5), product(2, 3, 5))
	repo := newMemoryOrderRepo()
	svc := newTestService(repo, stock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stock.decrementErr = func(id int64) error {
		// Cancel while the first product is being reserved; the second
		// decrement must then be skipped and the first undone.
		if id == 1 {
			cancel()
		}
		return nil
	}

	_, err := svc.PlaceOrder(ctx, customer, PlaceOrderRequest{
		Lines: []LineItemRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 2},
		},
		ShippingAddress: "12 Main St",
	})
	require.Error(t, err)
	require.Equal(t, int64(5), stock.stockOf(1), "compensation must survive cancellation")
	require.Equal(t, int64(5), stock.stockOf(2))
	require.Empty(t, repo.orders)
}

func TestPlaceOrderRetriesTransientRace(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 5))
	attempts := 0
	stock.decrementErr = func(int64) error {
		attempts++
		if attempts == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	}
	svc := newTestService(newMemoryOrderRepo(), stock, nil)

	order, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []LineItemRequest{{ProductID: 1, Quantity: 1}},
		ShippingAddress: "12 Main St",
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, int64(4), stock.stockOf(1))
	require.Equal(t, StatusPending, order.Status)
}

func TestPlaceOrderGivesUpAfterBoundedRetries(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 5))
	attempts := 0
	stock.decrementErr = func(int64) error {
		attempts++
		return &pgconn.PgError{Code: "40P01"}
	}
	svc := newTestService(newMemoryOrderRepo(), stock, nil)

	_, err := svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Lines:           []LineItemRequest{{ProductID: 1, Quantity: 1}},
		ShippingAddress: "12 Main St",
	})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, maxPlaceAttempts, attempts)
	require.Equal(t, int64(5), stock.stockOf(1))
}

func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	const contenders = 8
	stock := newMemoryStock(product(1, 10, 1))
	repo := newMemoryOrderRepo()
	svc := newTestService(repo, stock, nil)

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
				Lines:           []LineItemRequest{{ProductID: 1, Quantity: 1}},
				ShippingAddress: "12 Main St",
			})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		require.ErrorIs(t, err, shared.ErrConflict)
	}
	require.Equal(t, 1, won, "exactly one contender wins the last unit")
	require.Equal(t, int64(0), stock.stockOf(1))
	require.Len(t, repo.orders, 1)
}

func placeTestOrder(t *testing.T, svc *Service, repo *memoryOrderRepo, actor shared.Actor) Order {
	t.Helper()
	order, err := svc.PlaceOrder(context.Background(), actor, PlaceOrderRequest{
		Lines:           []LineItemRequest{{ProductID: 1, Quantity: 1}},
		ShippingAddress: "12 Main St",
	})
	require.NoError(t, err)
	return order
}

func TestSetStatusManagerMayRegress(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 10))
	repo := newMemoryOrderRepo()
	svc := newTestService(repo, stock, nil)
	order := placeTestOrder(t, svc, repo, customer)
	manager := shared.Actor{ID: 2, Role: "manager"}

	updated, err := svc.SetStatus(context.Background(), manager, order.ID, "delivered")
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, updated.Status)

	updated, err = svc.SetStatus(context.Background(), manager, order.ID, "pending")
	require.NoError(t, err)
	require.Equal(t, StatusPending, updated.Status)
}

func TestSetStatusDeliveryRoleLimitedToDelivered(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 10))
	repo := newMemoryOrderRepo()
	svc := newTestService(repo, stock, nil)
	order := placeTestOrder(t, svc, repo, customer)
	courier := shared.Actor{ID: 3, Role: "delivery"}

	_, err := svc.SetStatus(context.Background(), courier, order.ID, "shipped")
	require.ErrorIs(t, err, shared.ErrForbidden)

	updated, err := svc.SetStatus(context.Background(), courier, order.ID, "delivered")
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, updated.Status)
}

func TestSetStatusRejectsUnknownStatusAndActors(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 10))
	repo := newMemoryOrderRepo()
	svc := newTestService(repo, stock, nil)
	order := placeTestOrder(t, svc, repo, customer)

	_, err := svc.SetStatus(context.Background(), shared.Actor{ID: 2, Role: "manager"}, order.ID, "teleported")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.SetStatus(context.Background(), customer, order.ID, "delivered")
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.SetStatus(context.Background(), shared.Actor{ID: 2, Role: "manager"}, 999, "delivered")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetAppliesOwnershipOverlay(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 10))
	repo := newMemoryOrderRepo()
	svc := newTestService(repo, stock, nil)
	order := placeTestOrder(t, svc, repo, customer)

	got, err := svc.Get(context.Background(), customer, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)

	otherCustomer := shared.Actor{ID: 77, Role: "customer"}
	_, err = svc.Get(context.Background(), otherCustomer, order.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Get(context.Background(), shared.Actor{ID: 5, Role: "seller"}, order.ID)
	require.NoError(t, err, "unscoped view permission sees every order")
}

func TestListMine(t *testing.T) {
	stock := newMemoryStock(product(1, 10, 10))
	repo := newMemoryOrderRepo()
	svc := newTestService(repo, stock, nil)
	placeTestOrder(t, svc, repo, customer)

	items, total, err := svc.ListMine(context.Background(), customer, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, items, 1)

	_, _, err = svc.ListMine(context.Background(), shared.Actor{ID: 8, Role: "ghost"}, 10, 0)
	require.ErrorIs(t, err, shared.ErrForbidden)
}
