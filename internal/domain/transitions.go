package domain

import "fmt"

// TransitionError reports why a requested status change was denied. The
// request is never coerced into a different status; callers surface Reason
// verbatim.
type TransitionError struct {
	From    OrderStatus
	To      OrderStatus
	Payment PaymentStatus
	Reason  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s: %s", e.From, e.To, e.Reason)
}

func denied(o *Order, target OrderStatus, reason string) error {
	return &TransitionError{From: o.Status, To: target, Payment: o.PaymentStatus, Reason: reason}
}

// ValidateTransition decides whether an order may move to target. Pure, no
// side effects. Payment status is authoritative: no order-status transition
// may contradict it. A request for the current status is always allowed as
// an idempotent no-op.
func ValidateTransition(o *Order, target OrderStatus) error {
	if !target.Valid() {
		return denied(o, target, fmt.Sprintf("%q is not a recognised order status", target))
	}
	if target == o.Status {
		return nil
	}
	if o.Status.IsTerminal() {
		return denied(o, target, fmt.Sprintf("order is %s, which is a final state", o.Status))
	}

	if !reachable(o, target) {
		return denied(o, target, unreachableReason(o, target))
	}

	// Reachability alone is not enough: re-check payment consistency for the
	// gated targets even when the edge nominally exists.
	switch target {
	case OrderStatusProcessing:
		if o.PaymentStatus != PaymentStatusPaid {
			return denied(o, target, processingGateReason(o))
		}
	case OrderStatusCancelled:
		if o.PaymentStatus == PaymentStatusPaid {
			return denied(o, target, "order has a completed payment; refund it before cancelling")
		}
	case OrderStatusComplete:
		if o.Status != OrderStatusProcessing || o.PaymentStatus != PaymentStatusPaid {
			return denied(o, target, "only a processing order with a completed payment can be marked complete")
		}
	case OrderStatusRefunded:
		if o.PaymentStatus != PaymentStatusRefunded && o.PaymentStatus != PaymentStatusPartiallyRefunded {
			return denied(o, target, "payment has not been refunded; refund it before marking the order refunded")
		}
	}

	return nil
}

// reachable computes the edge set from the order's current status,
// parameterised by its payment status.
func reachable(o *Order, target OrderStatus) bool {
	switch o.Status {
	case OrderStatusPending:
		if target == OrderStatusProcessing {
			return o.PaymentStatus == PaymentStatusPaid
		}
		if target == OrderStatusCancelled {
			return o.PaymentStatus == PaymentStatusFailed
		}
		return false
	case OrderStatusProcessing:
		switch target {
		case OrderStatusComplete, OrderStatusOnHold, OrderStatusCancelled, OrderStatusRefunded:
			return true
		}
		return false
	case OrderStatusOnHold:
		if target == OrderStatusProcessing {
			return o.PaymentStatus == PaymentStatusPaid
		}
		return target == OrderStatusCancelled
	default:
		return false
	}
}

func unreachableReason(o *Order, target OrderStatus) string {
	switch o.Status {
	case OrderStatusPending:
		switch target {
		case OrderStatusProcessing:
			return processingGateReason(o)
		case OrderStatusCancelled:
			return fmt.Sprintf("a pending order can only be cancelled after its payment has failed (payment is %s)", o.PaymentStatus)
		default:
			return fmt.Sprintf("a pending order must be paid before it can become %s", target)
		}
	case OrderStatusOnHold:
		if target == OrderStatusProcessing {
			return processingGateReason(o)
		}
		return fmt.Sprintf("an on-hold order can only resume processing or be cancelled, not become %s", target)
	default:
		return fmt.Sprintf("%s is not reachable from %s", target, o.Status)
	}
}

func processingGateReason(o *Order) string {
	switch o.PaymentStatus {
	case PaymentStatusFailed:
		return "payment failed; the order cannot be processed until a new payment succeeds"
	case PaymentStatusPending:
		return "payment has not been received yet; wait for payment confirmation before processing"
	default:
		return fmt.Sprintf("payment is %s; an order can only be processed once its payment is paid", o.PaymentStatus)
	}
}
