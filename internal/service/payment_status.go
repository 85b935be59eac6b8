package service

import (
	"context"
	"fmt"

	"github.com/uhs-developer/kora/internal/domain"
)

// HandlePaymentStatusChange is the payment-reconciliation entry point.
// Payment status is not policy-gated (it reflects external truth); the order
// status only moves along a few hardcoded convenience paths:
//
//	paid while pending                  -> processing
//	failed while pending                -> stays pending (retryable)
//	refunded while processing           -> refunded
//	partially refunded while processing -> on_hold
//
// The order is always persisted, so payment_status is durable even when no
// status transition ran. Exactly one write happens per call: either the
// transition save, which carries the payment fields with it, or a plain save.
func (s *Service) HandlePaymentStatusChange(ctx context.Context, order *domain.Order, status domain.PaymentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown payment status %q", status)
	}

	order.PaymentStatus = status
	if status == domain.PaymentStatusPaid && order.PaidAt == nil {
		now := s.now()
		order.PaidAt = &now
	}

	var (
		target domain.OrderStatus
		reason string
	)
	switch {
	case status == domain.PaymentStatusPaid && order.Status == domain.OrderStatusPending:
		target, reason = domain.OrderStatusProcessing, "payment confirmed"
	case status == domain.PaymentStatusRefunded && order.Status == domain.OrderStatusProcessing:
		target, reason = domain.OrderStatusRefunded, "payment refunded"
	case status == domain.PaymentStatusPartiallyRefunded && order.Status == domain.OrderStatusProcessing:
		// The status check doubles as the idempotent guard: an order already
		// on hold stays put.
		target, reason = domain.OrderStatusOnHold, "payment partially refunded"
	}

	if target != "" {
		return s.Transition(ctx, order, target, reason)
	}
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("persist payment status: %w", err)
	}
	return nil
}
