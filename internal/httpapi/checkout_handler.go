package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/uhs-developer/kora/internal/cart"
	"github.com/uhs-developer/kora/internal/domain"
	"github.com/uhs-developer/kora/internal/gateway"
	"github.com/uhs-developer/kora/internal/repository"
	"github.com/uhs-developer/kora/internal/service"
)

// CheckoutService is the checkout surface the HTTP layer depends on.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*domain.Order, error)
	InitializePayment(ctx context.Context, order *domain.Order, method gateway.PaymentMethodSpec) (*service.PaymentInit, error)
	GetOrder(ctx context.Context, number string) (*domain.Order, error)
}

type CheckoutHandler struct {
	svc     CheckoutService
	carts   cart.Repository
	timeout time.Duration
}

func NewCheckoutHandler(svc CheckoutService, carts cart.Repository, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, carts: carts, timeout: timeout}
}

// GET /api/v1/cart
func (h *CheckoutHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	c, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			respondError(w, http.StatusNotFound, "cart_not_found", "no cart for this user")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}

	respondJSON(w, http.StatusOK, c)
}

type AddItemRequestDTO struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// POST /api/v1/cart/items
func (h *CheckoutHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.SKU == "" {
		respondError(w, http.StatusBadRequest, "invalid_sku", "sku is required")
		return
	}
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	c, err := h.carts.UpsertItem(ctx, userID, domain.CartItem{
		SKU:       req.SKU,
		Name:      req.Name,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		AddedAt:   time.Now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrCartConverted) {
			respondError(w, http.StatusConflict, "cart_converted", "cart was already converted to an order")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update cart")
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

type PlaceOrderRequestDTO struct {
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`

	ShippingAddress domain.Address `json:"shipping_address"`
	BillingAddress  domain.Address `json:"billing_address"`
}

// POST /api/v1/checkout/orders
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req PlaceOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.CustomerEmail == "" {
		respondError(w, http.StatusBadRequest, "missing_email", "customer_email is required")
		return
	}

	order, err := h.svc.PlaceOrder(ctx, service.PlaceOrderInput{
		UserID:          userID,
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	})
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrCartNotFound):
			respondError(w, http.StatusNotFound, "cart_not_found", "no cart for this user")
		case errors.Is(err, domain.ErrCartConverted):
			respondError(w, http.StatusConflict, "cart_converted", "cart was already converted to an order")
		case errors.Is(err, service.ErrEmptyCart):
			respondError(w, http.StatusUnprocessableEntity, "empty_cart", "cart has no items")
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to place order")
		}
		return
	}

	respondJSON(w, http.StatusCreated, convertOrder(order))
}

type InitializePaymentRequestDTO struct {
	Method gateway.PaymentMethodSpec `json:"method"`
}

// POST /api/v1/orders/{order_number}/payment
func (h *CheckoutHandler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	number := chi.URLParam(r, "order_number")
	order, err := h.svc.GetOrder(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "order_not_found", "no order with that number")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load order")
		return
	}

	var req InitializePaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	init, err := h.svc.InitializePayment(ctx, order, req.Method)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyPaid):
			respondError(w, http.StatusConflict, "already_paid", "order has already been paid")
		case errors.Is(err, service.ErrGatewayNotConfigured):
			respondError(w, http.StatusServiceUnavailable, "gateway_unavailable", "payment gateway is not configured")
		default:
			// The provider's error codes map to guidance the shopper can act
			// on; everything else degrades to a generic retry message.
			respondError(w, http.StatusBadGateway, "payment_init_failed", gateway.UserMessage(err))
		}
		return
	}

	respondJSON(w, http.StatusCreated, init)
}
