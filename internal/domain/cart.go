package domain

import (
	"errors"
	"time"
)

var ErrCartConverted = errors.New("cart has already been converted to an order")

type CartItem struct {
	SKU       string    `bson:"sku" json:"sku"`
	Name      string    `bson:"name" json:"name"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	UnitPrice int64     `bson:"unit_price" json:"unit_price"`
	RowTotal  int64     `bson:"row_total" json:"row_total"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// Cart is the pre-order mutable aggregate. Once ConvertedAt is set the cart
// is logically dead and must not accept further mutation.
type Cart struct {
	ID     string `bson:"_id,omitempty" json:"id"`
	UserID string `bson:"user_id" json:"user_id"`

	Items    []CartItem `bson:"items" json:"items"`
	Currency string     `bson:"currency" json:"currency"`

	Subtotal       int64 `bson:"subtotal" json:"subtotal"`
	TaxAmount      int64 `bson:"tax_amount" json:"tax_amount"`
	DiscountAmount int64 `bson:"discount_amount" json:"discount_amount"`
	ShippingAmount int64 `bson:"shipping_amount" json:"shipping_amount"`
	GrandTotal     int64 `bson:"grand_total" json:"grand_total"`

	ConvertedAt *time.Time `bson:"converted_at,omitempty" json:"converted_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

func (c *Cart) Converted() bool { return c.ConvertedAt != nil }

func (c *Cart) Empty() bool { return len(c.Items) == 0 }

// CalculateTotals re-derives row totals, the subtotal and the grand total.
// Invariant: grand_total = subtotal + tax + shipping - discount. Must be
// called every time items change; tax, shipping and discount amounts are
// provided by collaborators outside this subsystem.
func (c *Cart) CalculateTotals() {
	var subtotal int64
	for i := range c.Items {
		c.Items[i].RowTotal = c.Items[i].UnitPrice * int64(c.Items[i].Quantity)
		subtotal += c.Items[i].RowTotal
	}
	c.Subtotal = subtotal
	c.GrandTotal = subtotal + c.TaxAmount + c.ShippingAmount - c.DiscountAmount
}
