package domain

// PaymentMetadata is the durable link between an order and its in-flight or
// completed gateway charge. It replaces a free-form key-value note with named
// fields so merges cannot silently collide.
type PaymentMetadata struct {
	ChargeID      string `json:"charge_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reference     string `json:"reference,omitempty"`
	GatewayStatus string `json:"gateway_status,omitempty"`

	// Failure diagnostics from the provider's processor response.
	FailureMessage string `json:"failure_message,omitempty"`
	FailureType    string `json:"failure_type,omitempty"`
	FailureCode    string `json:"failure_code,omitempty"`
}

// Merge copies non-empty fields from in over m, field by field. Existing
// values are only replaced when the incoming value is set, so a later partial
// notification cannot blank out correlation ids stored earlier.
func (m *PaymentMetadata) Merge(in PaymentMetadata) {
	if in.ChargeID != "" {
		m.ChargeID = in.ChargeID
	}
	if in.TransactionID != "" {
		m.TransactionID = in.TransactionID
	}
	if in.Reference != "" {
		m.Reference = in.Reference
	}
	if in.GatewayStatus != "" {
		m.GatewayStatus = in.GatewayStatus
	}
	if in.FailureMessage != "" {
		m.FailureMessage = in.FailureMessage
	}
	if in.FailureType != "" {
		m.FailureType = in.FailureType
	}
	if in.FailureCode != "" {
		m.FailureCode = in.FailureCode
	}
}

const genericFailureReason = "Payment was not successful. Please try again or use a different payment method."

// FailureReason picks the most specific human-readable diagnostic available:
// processor message, then type, then code, then a generic fallback.
func (m PaymentMetadata) FailureReason() string {
	if m.FailureMessage != "" {
		return m.FailureMessage
	}
	if m.FailureType != "" {
		return m.FailureType
	}
	if m.FailureCode != "" {
		return m.FailureCode
	}
	return genericFailureReason
}
