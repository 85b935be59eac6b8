package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uhs-developer/kora/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(collection *mongo.Collection) Repository {
	return &mongoRepository{collection: collection}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

// UpsertItem adds the item or replaces the quantity/price of an existing line
// with the same SKU, then recomputes totals. Converted carts reject mutation.
func (m *mongoRepository) UpsertItem(ctx context.Context, userID string, item domain.CartItem) (*domain.Cart, error) {
	now := time.Now()
	item.AddedAt = now

	cart, err := m.GetCart(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		cart = &domain.Cart{
			UserID:    userID,
			Currency:  "USD",
			CreatedAt: now,
		}
	} else if err != nil {
		return nil, err
	}

	if cart.Converted() {
		return nil, domain.ErrCartConverted
	}

	replaced := false
	for i := range cart.Items {
		if cart.Items[i].SKU == item.SKU {
			cart.Items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		cart.Items = append(cart.Items, item)
	}

	cart.CalculateTotals()
	cart.UpdatedAt = now

	if err := m.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// SetCharges records the amounts computed by the tax/shipping/discount
// collaborators and recomputes the grand total.
func (m *mongoRepository) SetCharges(ctx context.Context, userID string, tax, shipping, discount int64) (*domain.Cart, error) {
	cart, err := m.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.Converted() {
		return nil, domain.ErrCartConverted
	}

	cart.TaxAmount = tax
	cart.ShippingAmount = shipping
	cart.DiscountAmount = discount
	cart.CalculateTotals()
	cart.UpdatedAt = time.Now()

	if err := m.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (m *mongoRepository) MarkConverted(ctx context.Context, userID string) error {
	now := time.Now()

	// The converted_at guard in the filter makes the stamp single-shot even
	// when two placements race on the same cart.
	filter := bson.M{
		"user_id":      userID,
		"converted_at": bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{"converted_at": now, "updated_at": now}}

	res, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark cart converted: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, getErr := m.GetCart(ctx, userID); getErr != nil {
			return getErr
		}
		return domain.ErrCartConverted
	}
	return nil
}

func (m *mongoRepository) save(ctx context.Context, cart *domain.Cart) error {
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = time.Now()
	}

	filter := bson.M{"user_id": cart.UserID}
	update := bson.M{"$set": bson.M{
		"user_id":         cart.UserID,
		"items":           cart.Items,
		"currency":        cart.Currency,
		"subtotal":        cart.Subtotal,
		"tax_amount":      cart.TaxAmount,
		"discount_amount": cart.DiscountAmount,
		"shipping_amount": cart.ShippingAmount,
		"grand_total":     cart.GrandTotal,
		"created_at":      cart.CreatedAt,
		"updated_at":      cart.UpdatedAt,
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}
