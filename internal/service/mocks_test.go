package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uhs-developer/kora/internal/cart"
	"github.com/uhs-developer/kora/internal/domain"
	"github.com/uhs-developer/kora/internal/gateway"
	"github.com/uhs-developer/kora/internal/repository"
)

// MockOrderRepo implements repository.OrderRepository in memory with real
// compare-and-swap semantics, so concurrency tests exercise the same
// conflict behaviour as the postgres implementation.
type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order

	AuditEntries []*domain.AuditEntry
	UpdateCalls  int

	CreateErr error
	UpdateErr error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: map[uuid.UUID]*domain.Order{}}
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

func (m *MockOrderRepo) CreateOrder(_ context.Context, order *domain.Order) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicateOrderNumber
		}
	}
	order.Version = 1
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *MockOrderRepo) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (m *MockOrderRepo) GetOrderByNumber(_ context.Context, number string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return copyOrder(o), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockOrderRepo) FindOrderByChargeID(_ context.Context, chargeID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.PaymentMeta.ChargeID == chargeID || o.PaymentMeta.TransactionID == chargeID {
			return copyOrder(o), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockOrderRepo) FindOrdersByNumberWithin(_ context.Context, reference string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if strings.Contains(reference, o.OrderNumber) {
			out = append(out, copyOrder(o))
		}
	}
	return out, nil
}

func (m *MockOrderRepo) UpdateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	cur, ok := m.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if cur.Version != order.Version {
		return repository.ErrVersionConflict
	}
	order.Version++
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *MockOrderRepo) ListPaymentTimedOut(_ context.Context, cutoff time.Time) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.Status == domain.OrderStatusPending &&
			(o.PaymentStatus == domain.PaymentStatusPending || o.PaymentStatus == domain.PaymentStatusFailed) &&
			o.CreatedAt.Before(cutoff) {
			out = append(out, copyOrder(o))
		}
	}
	return out, nil
}

func (m *MockOrderRepo) InsertAuditEntry(_ context.Context, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AuditEntries = append(m.AuditEntries, entry)
	return nil
}

func (m *MockOrderRepo) AuditCount(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.AuditEntries {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (m *MockOrderRepo) Stored(id uuid.UUID) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyOrder(m.orders[id])
}

func (m *MockOrderRepo) RunMigrations(*repository.Credentials) error { return nil }
func (m *MockOrderRepo) Close() error                                { return nil }

// MockNotifier counts dispatches.
type MockNotifier struct {
	mu           sync.Mutex
	SuccessCalls int
	FailureCalls int
	LastReason   string
	Err          error
}

func (n *MockNotifier) PaymentSucceeded(context.Context, *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.SuccessCalls++
	return n.Err
}

func (n *MockNotifier) PaymentFailed(_ context.Context, _ *domain.Order, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.FailureCalls++
	n.LastReason = reason
	return n.Err
}

func (n *MockNotifier) Successes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.SuccessCalls
}

// MockCartRepo serves one cart and records conversion.
type MockCartRepo struct {
	Cart         *domain.Cart
	GetErr       error
	ConvertedFor []string
	ConvertErr   error
}

func (m *MockCartRepo) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.Cart == nil {
		return nil, cart.ErrCartNotFound
	}
	return m.Cart, nil
}

func (m *MockCartRepo) UpsertItem(_ context.Context, _ string, _ domain.CartItem) (*domain.Cart, error) {
	return m.Cart, nil
}

func (m *MockCartRepo) SetCharges(_ context.Context, _ string, _, _, _ int64) (*domain.Cart, error) {
	return m.Cart, nil
}

func (m *MockCartRepo) MarkConverted(_ context.Context, userID string) error {
	if m.ConvertErr != nil {
		return m.ConvertErr
	}
	m.ConvertedFor = append(m.ConvertedFor, userID)
	return nil
}

// MockGateway captures outbound provider calls.
type MockGateway struct {
	CustomerID      string
	CustomerErr     error
	PaymentMethodID string
	MethodErr       error
	Charge          *gateway.Charge
	ChargeErr       error
	VerifiedCharge  *gateway.Charge
	VerifyErr       error

	ChargeRequests []gateway.ChargeRequest
}

func (g *MockGateway) CreateCustomer(context.Context, gateway.Customer) (string, error) {
	return g.CustomerID, g.CustomerErr
}

func (g *MockGateway) CreatePaymentMethod(context.Context, gateway.PaymentMethodSpec) (string, error) {
	return g.PaymentMethodID, g.MethodErr
}

func (g *MockGateway) CreateCharge(_ context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	g.ChargeRequests = append(g.ChargeRequests, req)
	return g.Charge, g.ChargeErr
}

func (g *MockGateway) VerifyCharge(context.Context, string) (*gateway.Charge, error) {
	return g.VerifiedCharge, g.VerifyErr
}
