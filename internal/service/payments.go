package service

import (
	"context"
	"fmt"

	"github.com/uhs-developer/kora/internal/domain"
	"github.com/uhs-developer/kora/internal/gateway"
)

// PaymentInit is what the checkout frontend needs to continue a payment:
// the charge correlation id and, for 3DS card flows, the bank redirect URL.
type PaymentInit struct {
	ChargeID  string `json:"charge_id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	AuthURL   string `json:"auth_url,omitempty"`
}

// InitializePayment creates the provider-side customer, payment method and
// charge for an order, and stores the correlation ids on the order so the
// racing callback and webhook can find it later.
func (s *Service) InitializePayment(ctx context.Context, order *domain.Order, method gateway.PaymentMethodSpec) (*PaymentInit, error) {
	if s.gw == nil {
		return nil, ErrGatewayNotConfigured
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return nil, ErrAlreadyPaid
	}

	customerID, err := s.gw.CreateCustomer(ctx, gateway.Customer{
		Name:  order.CustomerName,
		Email: order.CustomerEmail,
		Phone: order.CustomerPhone,
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway customer: %w", err)
	}

	method.CustomerID = customerID
	methodID, err := s.gw.CreatePaymentMethod(ctx, method)
	if err != nil {
		return nil, fmt.Errorf("create payment method: %w", err)
	}

	reference := gateway.GenerateReference(order.OrderNumber, s.now())
	charge, err := s.gw.CreateCharge(ctx, gateway.ChargeRequest{
		CustomerID:      customerID,
		PaymentMethodID: methodID,
		Amount:          order.GrandTotal,
		Currency:        order.Currency,
		Reference:       reference,
		RedirectURL:     s.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}

	order.PaymentMeta.Merge(domain.PaymentMetadata{
		ChargeID:      charge.ID,
		TransactionID: charge.TransactionID,
		Reference:     reference,
		GatewayStatus: charge.Status,
	})
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("store charge correlation for order %s: %w", order.OrderNumber, err)
	}

	s.audit(ctx, "payment_initialized", order, map[string]string{
		"charge_id": charge.ID,
		"reference": reference,
		"method":    method.Type,
	}, fmt.Sprintf("Charge %s created for order %s", charge.ID, order.OrderNumber))

	return &PaymentInit{
		ChargeID:  charge.ID,
		Reference: reference,
		Status:    charge.Status,
		AuthURL:   charge.AuthURL,
	}, nil
}
