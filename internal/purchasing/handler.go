package purchasing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/mofad-energy/mofad-erp/internal/observability"
	"github.com/mofad-energy/mofad-erp/internal/platform/httpx"
	"github.com/mofad-energy/mofad-erp/internal/rbac"
	"github.com/mofad-energy/mofad-erp/internal/shared"
)

// Handler manages purchasing endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
	metrics  *observability.Metrics

	reconGroup singleflight.Group
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		rbac:     rbacMW,
		metrics:  metrics,
	}
}

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermPurchasingView))
		r.Get("/pros", h.list)
		r.Get("/pros/{id}", h.get)
		r.Get("/pros/{id}/reconciliation", h.reconciliation)
		r.Get("/pros/{id}/approvals", h.approvals)
		r.Get("/queue/{role}", h.queue)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermPurchasingEdit))
		r.Post("/pros", h.create)
		r.Put("/pros/{id}", h.update)
		r.Delete("/pros/{id}", h.delete)
		r.Post("/pros/{id}/submit", h.transition("submit_for_review", func(ctx context.Context, id, actor int64, _ *http.Request) (PurchaseOrder, error) {
			return h.service.SubmitForReview(ctx, id, actor)
		}))
		r.Post("/pros/{id}/cancel", h.transition("cancel", func(ctx context.Context, id, actor int64, _ *http.Request) (PurchaseOrder, error) {
			return h.service.Cancel(ctx, id, actor)
		}))
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermPurchasingReview))
		r.Post("/pros/{id}/review", h.transition("review", func(ctx context.Context, id, actor int64, _ *http.Request) (PurchaseOrder, error) {
			return h.service.Review(ctx, id, actor)
		}))
		r.Post("/pros/{id}/review-reject", h.transition("review_reject", func(ctx context.Context, id, actor int64, r *http.Request) (PurchaseOrder, error) {
			reason, err := h.decodeReason(r)
			if err != nil {
				return PurchaseOrder{}, err
			}
			return h.service.ReviewReject(ctx, id, actor, reason)
		}))
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermPurchasingApprove))
		r.Post("/pros/{id}/approve", h.transition("approve", func(ctx context.Context, id, actor int64, _ *http.Request) (PurchaseOrder, error) {
			return h.service.Approve(ctx, id, actor)
		}))
		r.Post("/pros/{id}/reject", h.transition("reject", func(ctx context.Context, id, actor int64, r *http.Request) (PurchaseOrder, error) {
			reason, err := h.decodeReason(r)
			if err != nil {
				return PurchaseOrder{}, err
			}
			return h.service.Reject(ctx, id, actor, reason)
		}))
		r.Post("/pros/{id}/send", h.transition("send_to_supplier", func(ctx context.Context, id, actor int64, _ *http.Request) (PurchaseOrder, error) {
			return h.service.SendToSupplier(ctx, id, actor)
		}))
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermPurchasingReceive))
		r.Post("/pros/{id}/confirm", h.transition("confirm", func(ctx context.Context, id, actor int64, _ *http.Request) (PurchaseOrder, error) {
			return h.service.Confirm(ctx, id, actor)
		}))
		r.Post("/pros/{id}/record-delivery", h.recordDelivery)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.Create(r.Context(), req.toInput(), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "create", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req UpdatePurchaseOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.Update(r.Context(), id, req.toInput(), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "update", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	filters := ListFilters{
		Supplier: r.URL.Query().Get("supplier"),
		Search:   r.URL.Query().Get("search"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := Status(status)
		if !s.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status filter")
			return
		}
		filters.Statuses = []Status{s}
	}
	items, total, err := h.service.List(r.Context(), filters, limit, offset)
	if err != nil {
		h.respondError(w, "list", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse{
		Items:      items,
		Pagination: shared.NewPagination(offset, limit, total),
	})
}

func (h *Handler) queue(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	role := chi.URLParam(r, "role")
	items, total, err := h.service.ListPending(r.Context(), role, limit, offset)
	if err != nil {
		h.respondError(w, "queue", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse{
		Items:      items,
		Pagination: shared.NewPagination(offset, limit, total),
	})
}

func (h *Handler) reconciliation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	// Collapse concurrent recomputations for the same order.
	result, err, _ := h.reconGroup.Do(strconv.FormatInt(id, 10), func() (any, error) {
		return h.service.Reconciliation(r.Context(), id)
	})
	if err != nil {
		h.respondError(w, "reconciliation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) approvals(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	history, err := h.service.ApprovalHistory(r.Context(), id)
	if err != nil {
		h.respondError(w, "approvals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) recordDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req RecordDeliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, recon, err := h.service.RecordDelivery(r.Context(), id, req.LineID, req.Quantity, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.metrics.RecordTransition("record_delivery", "error")
		h.respondError(w, "record_delivery", err)
		return
	}
	h.metrics.RecordTransition("record_delivery", "ok")
	httpx.JSON(w, http.StatusOK, DeliveryResponse{PurchaseOrder: po, Reconciliation: recon})
}

type transitionFunc func(ctx context.Context, id, actor int64, r *http.Request) (PurchaseOrder, error)

func (h *Handler) transition(op string, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.parseID(w, r)
		if !ok {
			return
		}
		po, err := fn(r.Context(), id, shared.ActorFromContext(r.Context()), r)
		if err != nil {
			h.metrics.RecordTransition(op, "error")
			h.respondError(w, op, err)
			return
		}
		h.metrics.RecordTransition(op, "ok")
		httpx.JSON(w, http.StatusOK, po)
	}
}

func (h *Handler) decodeReason(r *http.Request) (string, error) {
	var req RejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return "", ErrReasonRequired
	}
	return req.Reason, nil
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("purchasing "+op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return 0, false
	}
	return id, true
}

func parsePage(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
