package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/uhs-developer/kora/internal/domain"
	"github.com/uhs-developer/kora/internal/repository"
)

// OrderService is the order surface the HTTP layer depends on.
type OrderService interface {
	GetOrder(ctx context.Context, number string) (*domain.Order, error)
	Transition(ctx context.Context, order *domain.Order, target domain.OrderStatus, reason string) error
	RecordAudit(ctx context.Context, entry *domain.AuditEntry)
}

type OrderHandler struct {
	svc     OrderService
	timeout time.Duration
}

func NewOrderHandler(svc OrderService, timeout time.Duration) *OrderHandler {
	return &OrderHandler{svc: svc, timeout: timeout}
}

type OrderItemDTO struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	RowTotal  int64  `json:"row_total"`
}

type OrderResponseDTO struct {
	ID            string         `json:"id"`
	OrderNumber   string         `json:"order_number"`
	Status        string         `json:"status"`
	PaymentStatus string         `json:"payment_status"`
	GrandTotal    int64          `json:"grand_total"`
	Currency      string         `json:"currency"`
	Items         []OrderItemDTO `json:"items"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			RowTotal:  it.RowTotal,
		})
	}
	return OrderResponseDTO{
		ID:            o.ID.String(),
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		GrandTotal:    o.GrandTotal,
		Currency:      o.Currency,
		Items:         items,
		PaidAt:        o.PaidAt,
		CompletedAt:   o.CompletedAt,
		CancelledAt:   o.CancelledAt,
		CreatedAt:     o.CreatedAt,
	}
}

// GET /api/v1/orders/{order_number}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	number := chi.URLParam(r, "order_number")
	if number == "" {
		respondError(w, http.StatusBadRequest, "missing_order_number", "order_number is required")
		return
	}

	order, err := h.svc.GetOrder(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "order_not_found", "no order with that number")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load order")
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// PATCH /api/v1/admin/orders/{order_number}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	number := chi.URLParam(r, "order_number")
	if number == "" {
		respondError(w, http.StatusBadRequest, "missing_order_number", "order_number is required")
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	target := domain.OrderStatus(req.Status)
	if !target.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_status",
			fmt.Sprintf("%q is not a recognised order status", req.Status))
		return
	}

	order, err := h.svc.GetOrder(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "order_not_found", "no order with that number")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load order")
		return
	}

	actor := getActorFromContext(r.Context())
	reason := req.Reason
	if reason == "" {
		reason = "manual status change by " + actor
	}

	if err := h.svc.Transition(ctx, order, target, reason); err != nil {
		var terr *domain.TransitionError
		if errors.As(err, &terr) {
			// The policy's denial reason goes to the client verbatim.
			respondError(w, http.StatusConflict, "invalid_transition", terr.Reason)
			return
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			respondError(w, http.StatusConflict, "version_conflict", "order was modified concurrently, retry")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update order")
		return
	}

	h.svc.RecordAudit(ctx, &domain.AuditEntry{
		Event:   "order_status_changed",
		Subject: "order:" + order.OrderNumber,
		Actor:   actor,
		Metadata: map[string]string{
			"status": string(target),
			"reason": reason,
		},
		Message: fmt.Sprintf("Status set to %s by %s", target, actor),
	})

	respondJSON(w, http.StatusOK, convertOrder(order))
}
