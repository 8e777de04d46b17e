package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shopcore/shopcore/internal/platform/httpx"
	"github.com/shopcore/shopcore/internal/rbac"
	"github.com/shopcore/shopcore/internal/shared"
)

// PlacementMetrics records placement outcomes. Implementations must be
// safe for concurrent use.
type PlacementMetrics interface {
	OrderPlaced()
	StockConflict()
}

// Handler wires HTTP endpoints for orders.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
	metrics   PlacementMetrics
}

// NewHandler constructs a Handler instance. Metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware, metrics PlacementMetrics) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      rbacMW,
		validator: validator.New(),
		metrics:   metrics,
	}
}

// MountRoutes registers order routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.With(h.rbac.RequireAny(shared.PermOrderPlace)).Post("/", h.place)
		r.With(h.rbac.RequireActor).Get("/mine", h.listMine)
		r.With(h.rbac.RequireActor).Get("/{id}", h.get)
		r.With(h.rbac.RequireAny(shared.PermOrderManage, shared.PermOrderDeliver)).Put("/{id}/status", h.setStatus)
	})
}

func (h *Handler) place(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req PlaceOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidInput)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidInput)
		return
	}
	order, err := h.service.PlaceOrder(r.Context(), actor, req)
	if err != nil {
		if h.metrics != nil && errors.Is(err, shared.ErrConflict) {
			h.metrics.StockConflict()
		}
		h.fail(w, r, "place order", err)
		return
	}
	if h.metrics != nil {
		h.metrics.OrderPlaced()
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := shared.NewPagination(page, perPage, 0)
	items, total, err := h.service.ListMine(r.Context(), actor, pagination.PerPage, pagination.Offset())
	if err != nil {
		h.fail(w, r, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(pagination.Page, pagination.PerPage, total),
	})
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SetStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidInput)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidInput)
		return
	}
	order, err := h.service.SetStatus(r.Context(), actor, id, req.Status)
	if err != nil {
		h.fail(w, r, "set order status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+" failed", slog.Any("error", err), slog.String("path", r.URL.Path))
	httpx.RespondError(w, err)
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrInvalidInput
	}
	return id, nil
}
