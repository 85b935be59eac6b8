package service

import (
	"context"
	"log"
	"time"

	"github.com/uhs-developer/kora/internal/cart"
	"github.com/uhs-developer/kora/internal/domain"
	"github.com/uhs-developer/kora/internal/gateway"
	"github.com/uhs-developer/kora/internal/repository"
)

// Notifier dispatches customer-facing payment notifications. Failures are a
// logging concern for callers, never a reason to abort reconciliation.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, order *domain.Order) error
	PaymentFailed(ctx context.Context, order *domain.Order, reason string) error
}

// PaymentGateway is the outbound provider surface this service depends on.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, customer gateway.Customer) (string, error)
	CreatePaymentMethod(ctx context.Context, spec gateway.PaymentMethodSpec) (string, error)
	CreateCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error)
	VerifyCharge(ctx context.Context, chargeID string) (*gateway.Charge, error)
}

type Service struct {
	repo     repository.OrderRepository
	carts    cart.Repository
	gw       PaymentGateway
	notifier Notifier

	// callbackURL is where the provider redirects the shopper after 3DS.
	callbackURL string

	now func() time.Time
}

func NewService(repo repository.OrderRepository, carts cart.Repository, gw PaymentGateway, notifier Notifier, callbackURL string) *Service {
	return &Service{
		repo:        repo,
		carts:       carts,
		gw:          gw,
		notifier:    notifier,
		callbackURL: callbackURL,
		now:         time.Now,
	}
}

func (s *Service) GetOrder(ctx context.Context, number string) (*domain.Order, error) {
	return s.repo.GetOrderByNumber(ctx, number)
}

// RecordAudit appends a business event to the audit log. Audit failures are
// logged but never fail the operation that produced the event.
func (s *Service) RecordAudit(ctx context.Context, entry *domain.AuditEntry) {
	if err := s.repo.InsertAuditEntry(ctx, entry); err != nil {
		log.Printf("audit write failed (event=%s subject=%s): %v", entry.Event, entry.Subject, err)
	}
}

func (s *Service) audit(ctx context.Context, event string, order *domain.Order, metadata map[string]string, message string) {
	s.RecordAudit(ctx, &domain.AuditEntry{
		Event:    event,
		Subject:  "order:" + order.OrderNumber,
		Metadata: metadata,
		Message:  message,
	})
}

func (s *Service) notifySuccess(ctx context.Context, order *domain.Order) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PaymentSucceeded(ctx, order); err != nil {
		log.Printf("payment success notification for order %s failed: %v", order.OrderNumber, err)
	}
}

func (s *Service) notifyFailure(ctx context.Context, order *domain.Order, reason string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PaymentFailed(ctx, order, reason); err != nil {
		log.Printf("payment failure notification for order %s failed: %v", order.OrderNumber, err)
	}
}
