package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/uhs-developer/kora/internal/domain"
)

type PlaceOrderInput struct {
	UserID string

	CustomerEmail string
	CustomerName  string
	CustomerPhone string

	ShippingAddress domain.Address
	BillingAddress  domain.Address
}

// PlaceOrder consumes the user's cart into a new pending/pending order. Items
// and addresses are snapshotted; the cart is marked converted and is dead
// afterwards.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	c, err := s.carts.GetCart(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if c.Converted() {
		return nil, domain.ErrCartConverted
	}
	if c.Empty() {
		return nil, ErrEmptyCart
	}

	// Recompute before trusting the stored totals.
	c.CalculateTotals()

	items := make([]domain.OrderItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, domain.OrderItem{
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			RowTotal:  it.RowTotal,
		})
	}

	now := s.now()
	order := &domain.Order{
		ID:              uuid.New(),
		OrderNumber:     generateOrderNumber(),
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		GrandTotal:      c.GrandTotal,
		Currency:        c.Currency,
		CustomerEmail:   in.CustomerEmail,
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.carts.MarkConverted(ctx, in.UserID); err != nil {
		// The order exists; an unconverted cart is an operator concern, not
		// a placement failure.
		log.Printf("order %s: failed to mark cart converted for user %s: %v",
			order.OrderNumber, in.UserID, err)
	}

	s.audit(ctx, "order_placed", order, map[string]string{
		"user_id":     in.UserID,
		"grand_total": fmt.Sprint(order.GrandTotal),
		"currency":    order.Currency,
	}, fmt.Sprintf("Order %s placed for %d %s", order.OrderNumber, order.GrandTotal, order.Currency))

	return order, nil
}

// generateOrderNumber builds the stable, human-facing identifier. Alphanumeric
// so it survives reference sanitisation unchanged.
func generateOrderNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "ORD" + raw[:10]
}
