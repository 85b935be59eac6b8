package domain

import "time"

// AuditEntry is an append-only record of a business event. Write once, never
// mutated or deleted.
type AuditEntry struct {
	ID        int64
	Event     string            // e.g. "payment_received", "order_status_changed"
	Subject   string            // e.g. "order:ORD3F2A9C1B44"
	Actor     string            // empty for system / external triggers
	Metadata  map[string]string
	Message   string
	CreatedAt time.Time
}
