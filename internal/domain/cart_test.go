package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateTotals(t *testing.T) {
	c := &Cart{
		Items: []CartItem{
			{SKU: "SKU-1", UnitPrice: 1500, Quantity: 2},
			{SKU: "SKU-2", UnitPrice: 900, Quantity: 1},
		},
		TaxAmount:      250,
		ShippingAmount: 500,
		DiscountAmount: 300,
	}

	c.CalculateTotals()

	assert.Equal(t, int64(3000), c.Items[0].RowTotal)
	assert.Equal(t, int64(900), c.Items[1].RowTotal)
	assert.Equal(t, int64(3900), c.Subtotal)
	assert.Equal(t, int64(3900+250+500-300), c.GrandTotal)
}

func TestCalculateTotals_EmptyCart(t *testing.T) {
	c := &Cart{}
	c.CalculateTotals()
	assert.Equal(t, int64(0), c.Subtotal)
	assert.Equal(t, int64(0), c.GrandTotal)
}

func TestPaymentMetadataMerge(t *testing.T) {
	m := PaymentMetadata{ChargeID: "chg_123", Reference: "KORAORD1AB234"}
	m.Merge(PaymentMetadata{
		TransactionID: "txn_9",
		GatewayStatus: "succeeded",
	})

	assert.Equal(t, "chg_123", m.ChargeID)
	assert.Equal(t, "KORAORD1AB234", m.Reference)
	assert.Equal(t, "txn_9", m.TransactionID)
	assert.Equal(t, "succeeded", m.GatewayStatus)

	// Empty incoming fields never blank out stored values.
	m.Merge(PaymentMetadata{GatewayStatus: "failed"})
	assert.Equal(t, "chg_123", m.ChargeID)
	assert.Equal(t, "failed", m.GatewayStatus)
}

func TestFailureReasonPriority(t *testing.T) {
	m := PaymentMetadata{
		FailureMessage: "Insufficient funds",
		FailureType:    "card_error",
		FailureCode:    "51",
	}
	assert.Equal(t, "Insufficient funds", m.FailureReason())

	m.FailureMessage = ""
	assert.Equal(t, "card_error", m.FailureReason())

	m.FailureType = ""
	assert.Equal(t, "51", m.FailureReason())

	m.FailureCode = ""
	assert.Contains(t, m.FailureReason(), "try again")
}
