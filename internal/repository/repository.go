package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uhs-developer/kora/internal/domain"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrVersionConflict      = errors.New("order was modified concurrently")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OrderRepository is the persistence seam for orders and the audit log.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error)

	// FindOrderByChargeID matches the id against the stored gateway charge id
	// or transaction id.
	FindOrderByChargeID(ctx context.Context, chargeID string) (*domain.Order, error)

	// FindOrdersByNumberWithin returns every order whose order number appears
	// as a substring of reference. Callers decide what to do with multiple
	// hits; ambiguity is never resolved here.
	FindOrdersByNumberWithin(ctx context.Context, reference string) ([]*domain.Order, error)

	// UpdateOrder persists the order as a single atomic write guarded by its
	// version. Returns ErrVersionConflict when another writer got there first.
	UpdateOrder(ctx context.Context, order *domain.Order) error

	// ListPaymentTimedOut returns pending orders whose payment is still
	// pending or failed and that were created before cutoff.
	ListPaymentTimedOut(ctx context.Context, cutoff time.Time) ([]*domain.Order, error)

	InsertAuditEntry(ctx context.Context, entry *domain.AuditEntry) error

	RunMigrations(cred *Credentials) error
	Close() error
}
