package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopcore/shopcore/internal/rbac"
	"github.com/shopcore/shopcore/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Create(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	IncrementStock(ctx context.Context, id, qty int64) error
}

// Service handles product business logic behind the authorization guard.
type Service struct {
	repo  RepositoryPort
	guard *rbac.Guard
	audit shared.AuditRecorder
}

// NewService builds Service.
func NewService(repo RepositoryPort, guard *rbac.Guard, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, guard: guard, audit: audit}
}

func (s *Service) validate(form ProductForm) error {
	if strings.TrimSpace(form.Code) == "" {
		return fmt.Errorf("%w: product code is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(form.Name) == "" {
		return fmt.Errorf("%w: product name is required", shared.ErrInvalidInput)
	}
	if form.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", shared.ErrInvalidInput)
	}
	if form.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", shared.ErrInvalidInput)
	}
	return nil
}

// Create adds a product owned by the acting user.
func (s *Service) Create(ctx context.Context, actor shared.Actor, form ProductForm) (Product, error) {
	if err := s.guard.Require(actor, shared.PermProductCreate); err != nil {
		return Product{}, err
	}
	if err := s.validate(form); err != nil {
		return Product{}, err
	}
	product := Product{
		Code:     strings.TrimSpace(form.Code),
		Name:     strings.TrimSpace(form.Name),
		Price:    form.Price,
		Stock:    form.Stock,
		OwnerID:  actor.ID,
		IsActive: form.IsActive,
	}
	id, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, actor, "product:create", id, map[string]any{"code": product.Code})
	return s.repo.Get(ctx, id)
}

// Update rewrites a product. Edits require the edit permission or the
// own-variant plus ownership; stock is untouched.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, form ProductForm) (Product, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.guard.Evaluate(actor, []string{shared.PermProductEdit}, existing).Err(); err != nil {
		return Product{}, err
	}
	if err := s.validate(form); err != nil {
		return Product{}, err
	}
	existing.Code = strings.TrimSpace(form.Code)
	existing.Name = strings.TrimSpace(form.Name)
	existing.Price = form.Price
	existing.IsActive = form.IsActive
	if err := s.repo.Update(ctx, existing); err != nil {
		return Product{}, err
	}
	s.record(ctx, actor, "product:update", id, map[string]any{"code": existing.Code})
	return s.repo.Get(ctx, id)
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.Evaluate(actor, []string{shared.PermProductDelete}, existing).Err(); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "product:delete", id, nil)
	return nil
}

// Restock adds inventory through the atomic increment path.
func (s *Service) Restock(ctx context.Context, actor shared.Actor, id, qty int64) (Product, error) {
	if qty < 1 {
		return Product{}, fmt.Errorf("%w: restock quantity must be at least 1", shared.ErrInvalidInput)
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.guard.Evaluate(actor, []string{shared.PermProductEdit}, existing).Err(); err != nil {
		return Product{}, err
	}
	if err := s.repo.IncrementStock(ctx, id, qty); err != nil {
		return Product{}, err
	}
	s.record(ctx, actor, "product:restock", id, map[string]any{"qty": qty})
	return s.repo.Get(ctx, id)
}

// Get fetches a product.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Product, error) {
	if err := s.guard.Require(actor, shared.PermProductView); err != nil {
		return Product{}, err
	}
	return s.repo.Get(ctx, id)
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Product, int, error) {
	if err := s.guard.Require(actor, shared.PermProductView); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "products",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
