package reaper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/uhs-developer/kora/internal/domain"
	"github.com/uhs-developer/kora/internal/repository"
)

// OrderService is the slice of the order service the reaper drives.
type OrderService interface {
	HandlePaymentStatusChange(ctx context.Context, order *domain.Order, status domain.PaymentStatus) error
	Transition(ctx context.Context, order *domain.Order, target domain.OrderStatus, reason string) error
	RecordAudit(ctx context.Context, entry *domain.AuditEntry)
}

// Reaper cancels orders whose payment never arrived. An expired payment
// window counts as a payment failure, which is what unlocks the
// pending -> cancelled edge.
type Reaper struct {
	repo repository.OrderRepository
	svc  OrderService

	paymentTimeout time.Duration
	tick           time.Duration
	dryRun         bool
	now            func() time.Time
}

func New(repo repository.OrderRepository, svc OrderService, paymentTimeout, tick time.Duration, dryRun bool) *Reaper {
	return &Reaper{
		repo:           repo,
		svc:            svc,
		paymentTimeout: paymentTimeout,
		tick:           tick,
		dryRun:         dryRun,
		now:            time.Now,
	}
}

// Summary reports what one sweep did.
type Summary struct {
	Scanned   int
	Cancelled int
	Skipped   int
	Failed    int
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sum, err := r.Sweep(ctx)
			if err != nil {
				log.Printf("reaper sweep failed: %v", err)
				continue
			}
			if sum.Scanned > 0 {
				log.Printf("reaper: scanned=%d cancelled=%d skipped=%d failed=%d",
					sum.Scanned, sum.Cancelled, sum.Skipped, sum.Failed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sweep cancels every order that has sat pending past the payment window.
// One bad order never stops the rest of the batch.
func (r *Reaper) Sweep(ctx context.Context) (Summary, error) {
	var sum Summary

	cutoff := r.now().Add(-r.paymentTimeout)
	orders, err := r.repo.ListPaymentTimedOut(ctx, cutoff)
	if err != nil {
		return sum, fmt.Errorf("list timed-out orders: %w", err)
	}
	sum.Scanned = len(orders)

	for _, order := range orders {
		if r.dryRun {
			log.Printf("reaper (dry run): would cancel order %s (created %s, payment %s)",
				order.OrderNumber, order.CreatedAt.Format(time.RFC3339), order.PaymentStatus)
			sum.Skipped++
			continue
		}
		if err := r.expire(ctx, order); err != nil {
			log.Printf("reaper: failed to cancel order %s: %v", order.OrderNumber, err)
			sum.Failed++
			continue
		}
		sum.Cancelled++
	}

	return sum, nil
}

func (r *Reaper) expire(ctx context.Context, order *domain.Order) error {
	if order.PaymentStatus == domain.PaymentStatusPending {
		if err := r.svc.HandlePaymentStatusChange(ctx, order, domain.PaymentStatusFailed); err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}
	}

	if err := r.svc.Transition(ctx, order, domain.OrderStatusCancelled, "payment window expired"); err != nil {
		return err
	}

	r.svc.RecordAudit(ctx, &domain.AuditEntry{
		Event:   "order_expired",
		Subject: "order:" + order.OrderNumber,
		Actor:   "reaper",
		Metadata: map[string]string{
			"payment_timeout": r.paymentTimeout.String(),
		},
		Message: fmt.Sprintf("Order %s cancelled, no payment within %s", order.OrderNumber, r.paymentTimeout),
	})
	return nil
}
