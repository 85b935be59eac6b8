package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/uhs-developer/kora/internal/domain"
	"github.com/uhs-developer/kora/internal/gateway"
	"github.com/uhs-developer/kora/internal/repository"
	"github.com/uhs-developer/kora/internal/service"
)

// Reconciler funnels inbound charge notifications into the order state.
type Reconciler interface {
	ReconcileCharge(ctx context.Context, res service.ChargeResult) (service.Outcome, *domain.Order, error)
}

// ChargeVerifier is the slice of the gateway client the payment endpoints
// need: server-to-server charge verification and webhook authentication.
type ChargeVerifier interface {
	VerifyCharge(ctx context.Context, chargeID string) (*gateway.Charge, error)
	VerifyWebhookSignature(payload []byte, signature string) bool
	SecretConfigured() bool
}

type PaymentHandler struct {
	svc Reconciler
	gw  ChargeVerifier

	frontendURL string
	// strictWebhook rejects webhooks outright when no signing secret is
	// configured instead of accepting everything.
	strictWebhook bool
	timeout       time.Duration
}

func NewPaymentHandler(svc Reconciler, gw ChargeVerifier, frontendURL string, strictWebhook bool, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		svc:           svc,
		gw:            gw,
		frontendURL:   frontendURL,
		strictWebhook: strictWebhook,
		timeout:       timeout,
	}
}

func (h *PaymentHandler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.frontendURL+"/checkout?error="+url.QueryEscape(code), http.StatusFound)
}

func outcomeParam(outcome service.Outcome) string {
	switch outcome {
	case service.OutcomeSuccessful:
		return "success"
	case service.OutcomeFailed:
		return "failed"
	case service.OutcomePending:
		return "pending"
	default:
		return "unknown"
	}
}

// GET /payment/callback
//
// The provider redirects the shopper's browser here after the charge. Query
// parameters are attacker-typable, so the charge state is always re-fetched
// from the provider before any order is touched.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	chargeID := q.Get("charge_id")
	if chargeID == "" {
		chargeID = q.Get("transaction_id")
	}
	if chargeID == "" {
		h.redirectError(w, r, "invalid_callback")
		return
	}

	if h.gw == nil {
		h.redirectError(w, r, "configuration_error")
		return
	}

	verified, err := h.gw.VerifyCharge(ctx, chargeID)
	if err != nil {
		log.Printf("callback: verification of charge %s failed: %v", chargeID, err)
		h.redirectError(w, r, "verification_failed")
		return
	}

	res := service.ChargeResultFromCharge(verified)
	if res.Reference == "" {
		// Some providers omit the reference on verify; the redirect carries it.
		res.Reference = q.Get("tx_ref")
		if res.Reference == "" {
			res.Reference = q.Get("reference")
		}
	}

	outcome, order, err := h.svc.ReconcileCharge(ctx, res)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			h.redirectError(w, r, "order_not_found")
			return
		}
		log.Printf("callback: reconciliation of charge %s failed: %v", chargeID, err)
		h.redirectError(w, r, "processing_error")
		return
	}

	http.Redirect(w, r,
		h.frontendURL+"/thank-you?order="+url.QueryEscape(order.OrderNumber)+"&payment="+outcomeParam(outcome),
		http.StatusFound)
}

type webhookEvent struct {
	Event string         `json:"event"`
	Data  gateway.Charge `json:"data"`
}

// POST /webhooks/payment
//
// Server-to-server notification channel. The provider retries non-2xx
// responses, so once the signature checks out this endpoint always answers
// 200; reconciliation problems are logged, not surfaced.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}

	if h.gw == nil || (h.strictWebhook && !h.gw.SecretConfigured()) {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid signature"})
		return
	}
	if !h.gw.VerifyWebhookSignature(body, r.Header.Get("verif-hash")) {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid signature"})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("webhook: undecodable payload: %v", err)
		respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	if event.Event != "charge.completed" {
		log.Printf("webhook: ignoring event %q", event.Event)
		respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	res := service.ChargeResultFromCharge(&event.Data)

	// The signature authenticates the payload, but the charge state is still
	// re-verified with the provider when possible.
	if verified, err := h.gw.VerifyCharge(ctx, res.ChargeID); err == nil {
		res = service.ChargeResultFromCharge(verified)
	} else {
		log.Printf("webhook: verification of charge %s failed, using signed payload: %v", res.ChargeID, err)
	}

	if _, _, err := h.svc.ReconcileCharge(ctx, res); err != nil && !errors.Is(err, repository.ErrOrderNotFound) {
		log.Printf("webhook: reconciliation of charge %s failed: %v", res.ChargeID, err)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
