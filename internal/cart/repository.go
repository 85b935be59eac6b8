package cart

import (
	"context"
	"errors"

	"github.com/uhs-developer/kora/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
)

// Repository is the minimal cart surface this subsystem needs: read the
// aggregate, mutate items pre-conversion, and consume it exactly once at
// order placement.
type Repository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertItem(ctx context.Context, userID string, item domain.CartItem) (*domain.Cart, error)
	SetCharges(ctx context.Context, userID string, tax, shipping, discount int64) (*domain.Cart, error)

	// MarkConverted stamps converted_at exactly once. A cart that is already
	// converted returns domain.ErrCartConverted; callers must treat that cart
	// as dead.
	MarkConverted(ctx context.Context, userID string) error
}
