package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/uhs-developer/kora/internal/domain"
	"github.com/uhs-developer/kora/internal/gateway"
	"github.com/uhs-developer/kora/internal/repository"
)

// Outcome is the canonical classification of a provider charge status.
type Outcome string

const (
	OutcomeSuccessful Outcome = "successful"
	OutcomeFailed     Outcome = "failed"
	OutcomePending    Outcome = "pending"
	OutcomeUnknown    Outcome = "unknown"
)

// ClassifyOutcome maps the provider's status vocabulary onto the canonical
// buckets. Anything unrecognised lands in unknown and must not mutate state.
func ClassifyOutcome(providerStatus string) Outcome {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "successful", "succeeded", "success":
		return OutcomeSuccessful
	case "failed", "cancelled", "canceled", "declined":
		return OutcomeFailed
	case "pending", "processing":
		return OutcomePending
	default:
		return OutcomeUnknown
	}
}

// ChargeResult is a normalized inbound payment notification, whichever
// channel it arrived on.
type ChargeResult struct {
	ChargeID      string
	TransactionID string
	Reference     string
	Status        string
	Processor     gateway.ProcessorResponse
}

func ChargeResultFromCharge(c *gateway.Charge) ChargeResult {
	return ChargeResult{
		ChargeID:      c.ID,
		TransactionID: c.TransactionID,
		Reference:     c.Reference,
		Status:        c.Status,
		Processor:     c.ProcessorResponse,
	}
}

func (r ChargeResult) primaryID() string {
	if r.ChargeID != "" {
		return r.ChargeID
	}
	return r.TransactionID
}

func (r ChargeResult) metadata() domain.PaymentMetadata {
	return domain.PaymentMetadata{
		ChargeID:       r.ChargeID,
		TransactionID:  r.TransactionID,
		Reference:      r.Reference,
		GatewayStatus:  r.Status,
		FailureMessage: r.Processor.Message,
		FailureType:    r.Processor.Type,
		FailureCode:    r.Processor.Code,
	}
}

// ResolveOrder locates the order a charge belongs to: stored charge or
// transaction id first, then a prefixed-reference substring scan that must
// hit exactly one order, then an exact reference-to-order-number match.
// Ambiguity is never guessed away; it resolves to not found.
func (s *Service) ResolveOrder(ctx context.Context, chargeID, reference string) (*domain.Order, error) {
	if chargeID != "" {
		order, err := s.repo.FindOrderByChargeID(ctx, chargeID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
	}

	if reference != "" {
		if gateway.HasGeneratedPrefix(reference) {
			matches, err := s.repo.FindOrdersByNumberWithin(ctx, gateway.CleanReference(reference))
			if err != nil {
				return nil, err
			}
			switch len(matches) {
			case 1:
				return matches[0], nil
			case 0:
				// fall through
			default:
				log.Printf("reference %q matches %d orders; refusing to guess", reference, len(matches))
			}
		}

		order, err := s.repo.GetOrderByNumber(ctx, reference)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
	}

	return nil, repository.ErrOrderNotFound
}

// casRetries bounds the optimistic-concurrency retry loop shared by both
// reconciliation entry points.
const casRetries = 3

// ReconcileCharge converts an external payment notification into an
// idempotent update of local order state. Both the redirect callback and the
// webhook funnel through here, so the two racing channels share one code
// path and one concurrency strategy.
func (s *Service) ReconcileCharge(ctx context.Context, res ChargeResult) (Outcome, *domain.Order, error) {
	outcome := ClassifyOutcome(res.Status)

	order, err := s.ResolveOrder(ctx, res.primaryID(), res.Reference)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			log.Printf("no order matches charge %q / reference %q (status %q); ignoring",
				res.primaryID(), res.Reference, res.Status)
		}
		return outcome, nil, err
	}

	switch outcome {
	case OutcomeSuccessful:
		err = s.reconcileSuccess(ctx, order, res)
	case OutcomeFailed:
		err = s.reconcileFailure(ctx, order, res)
	case OutcomePending:
		log.Printf("order %s: charge %s still %s; waiting for the final notification",
			order.OrderNumber, res.primaryID(), res.Status)
	default:
		log.Printf("order %s: unrecognised gateway status %q for charge %s; no state change",
			order.OrderNumber, res.Status, res.primaryID())
	}

	return outcome, order, err
}

func (s *Service) reconcileSuccess(ctx context.Context, order *domain.Order, res ChargeResult) error {
	for attempt := 0; ; attempt++ {
		alreadyPaid := order.PaymentStatus == domain.PaymentStatusPaid

		order.PaymentMeta.Merge(res.metadata())

		var err error
		if alreadyPaid {
			// Re-delivery: keep the freshest gateway metadata but do not
			// re-stamp paid_at, re-audit or re-notify.
			err = s.repo.UpdateOrder(ctx, order)
		} else {
			err = s.HandlePaymentStatusChange(ctx, order, domain.PaymentStatusPaid)
		}

		if errors.Is(err, repository.ErrVersionConflict) && attempt < casRetries {
			if order, err = s.reloadOrder(ctx, order); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("record successful payment for order %s: %w", order.OrderNumber, err)
		}

		if alreadyPaid {
			return nil
		}

		s.audit(ctx, "payment_received", order, map[string]string{
			"charge_id":      order.PaymentMeta.ChargeID,
			"transaction_id": order.PaymentMeta.TransactionID,
			"gateway_status": res.Status,
		}, fmt.Sprintf("Payment of %d %s received", order.GrandTotal, order.Currency))
		s.notifySuccess(ctx, order)
		return nil
	}
}

func (s *Service) reconcileFailure(ctx context.Context, order *domain.Order, res ChargeResult) error {
	for attempt := 0; ; attempt++ {
		// Provider retries re-deliver the same failure; act once.
		if order.PaymentStatus == domain.PaymentStatusFailed {
			return nil
		}
		// A failure notice for a paid order contradicts money state, which
		// is authoritative. Never un-pay an order from a notification.
		if order.PaymentStatus == domain.PaymentStatusPaid {
			log.Printf("order %s: ignoring failed notification for charge %s, payment already completed",
				order.OrderNumber, res.primaryID())
			return nil
		}

		order.PaymentMeta.Merge(res.metadata())

		err := s.HandlePaymentStatusChange(ctx, order, domain.PaymentStatusFailed)
		if errors.Is(err, repository.ErrVersionConflict) && attempt < casRetries {
			if order, err = s.reloadOrder(ctx, order); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("record failed payment for order %s: %w", order.OrderNumber, err)
		}

		reason := order.PaymentMeta.FailureReason()
		s.audit(ctx, "payment_failed", order, map[string]string{
			"charge_id":      order.PaymentMeta.ChargeID,
			"gateway_status": res.Status,
			"reason":         reason,
		}, fmt.Sprintf("Payment failed: %s", reason))
		s.notifyFailure(ctx, order, reason)
		return nil
	}
}

func (s *Service) reloadOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	fresh, err := s.repo.GetOrderByID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("reload order %s after conflict: %w", order.OrderNumber, err)
	}
	*order = *fresh
	return order, nil
}
