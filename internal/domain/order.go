package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusComplete   OrderStatus = "complete"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusOnHold     OrderStatus = "on_hold"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// IsTerminal reports whether no further status transition is possible.
// Terminal orders are permanent rest states, they are never deleted.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusComplete || s == OrderStatusCancelled || s == OrderStatusRefunded
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusComplete,
		OrderStatusCancelled, OrderStatusOnHold, OrderStatusRefunded:
		return true
	}
	return false
}

func (s OrderStatus) String() string { return string(s) }

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusAuthorized        PaymentStatus = "authorized"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusFailed            PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusAuthorized, PaymentStatusPaid,
		PaymentStatusPartiallyRefunded, PaymentStatusRefunded, PaymentStatusFailed:
		return true
	}
	return false
}

func (s PaymentStatus) String() string { return string(s) }

// Address is a point-in-time snapshot copied onto the order at placement.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// OrderItem is an immutable snapshot of a product line, copied from the
// cart when the order is placed. Never updated afterwards.
type OrderItem struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	RowTotal  int64  `json:"row_total"`
}

// Order is the shared mutable resource of this system. Status and payment
// status are mutated only through the transition executor and
// HandlePaymentStatusChange; every write is a compare-and-swap on Version.
type Order struct {
	ID          uuid.UUID
	OrderNumber string

	Status        OrderStatus
	PaymentStatus PaymentStatus

	GrandTotal int64 // minor currency units
	Currency   string

	CustomerEmail string
	CustomerName  string
	CustomerPhone string

	ShippingAddress Address
	BillingAddress  Address

	Items []OrderItem

	PaymentMeta PaymentMetadata

	PaidAt      *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
