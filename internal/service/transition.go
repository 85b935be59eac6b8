package service

import (
	"context"
	"fmt"
	"log"

	"github.com/uhs-developer/kora/internal/domain"
)

// Transition applies an approved status change and persists the order as one
// atomic write. On a policy denial nothing is mutated and the
// *domain.TransitionError carries the reason. This call does not write audit
// entries; callers add the business context.
func (s *Service) Transition(ctx context.Context, order *domain.Order, target domain.OrderStatus, reason string) error {
	if err := domain.ValidateTransition(order, target); err != nil {
		return err
	}
	if target == order.Status {
		// Idempotent no-op: repeated identical requests never error.
		return nil
	}

	prev := order.Status
	order.Status = target

	// complete and cancelled carry first-entry timestamps; the other
	// statuses deliberately do not.
	now := s.now()
	if target == domain.OrderStatusComplete && order.CompletedAt == nil {
		order.CompletedAt = &now
	}
	if target == domain.OrderStatusCancelled && order.CancelledAt == nil {
		order.CancelledAt = &now
	}

	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		order.Status = prev
		return fmt.Errorf("persist status transition: %w", err)
	}

	log.Printf("order %s: status %s -> %s (payment %s): %s",
		order.OrderNumber, prev, target, order.PaymentStatus, reason)
	return nil
}
