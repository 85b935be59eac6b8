package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every handler into the HTTP surface. The payment callback
// and webhook live outside /api/v1: their paths are registered with the
// provider and must stay stable.
func NewRouter(orders *OrderHandler, checkout *CheckoutHandler, payments *PaymentHandler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MockAuthMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/payment/callback", payments.Callback)
	r.Post("/webhooks/payment", payments.Webhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", checkout.GetCart)
			r.Post("/items", checkout.AddItem)
		})
		r.Post("/checkout/orders", checkout.PlaceOrder)
		r.Route("/orders/{order_number}", func(r chi.Router) {
			r.Get("/", orders.GetOrder)
			r.Post("/payment", checkout.InitializePayment)
		})
		r.Patch("/admin/orders/{order_number}/status", orders.UpdateStatus)
	})

	return r
}
