package gateway

import (
	"strconv"
	"strings"
	"time"
)

// referencePrefix marks references generated by this system, so inbound
// callbacks can tell a generated reference from a bare order number.
const referencePrefix = "KORA"

// GenerateReference derives the merchant reference sent to the provider at
// charge creation: prefix, order identity, creation timestamp. Alphanumeric
// only, which both satisfies the gateway's format rules and makes the value
// unguessable from the order number alone.
func GenerateReference(orderNumber string, now time.Time) string {
	return referencePrefix + CleanReference(orderNumber) + strconv.FormatInt(now.UnixNano(), 10)
}

// CleanReference strips everything but letters and digits.
func CleanReference(ref string) string {
	var b strings.Builder
	b.Grow(len(ref))
	for _, r := range ref {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HasGeneratedPrefix reports whether ref looks like a reference this system
// generated.
func HasGeneratedPrefix(ref string) bool {
	return strings.HasPrefix(CleanReference(ref), referencePrefix)
}
