package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the provider. Its technical content is
// for logs, never for end users; use UserMessage for anything user-facing.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error %d (%s): %s", e.Status, e.Code, e.Message)
}

func (e *APIError) IsDuplicate() bool {
	return e.Status == http.StatusConflict || e.Code == "customer_already_exists"
}

const genericUserMessage = "Payment processing failed. Please try again or use a different payment method."

// userMessages maps known provider error codes to user-safe strings. A plain
// lookup keeps the mapping trivially testable.
var userMessages = map[string]string{
	"card_expired":        "Your card has expired. Please use a different card.",
	"expired_card":        "Your card has expired. Please use a different card.",
	"card_declined":       "Your card was declined. Please contact your bank or use a different card.",
	"do_not_honor":        "Your card was declined. Please contact your bank or use a different card.",
	"insufficient_funds":  "Insufficient funds. Please top up or use a different payment method.",
	"invalid_cvv":         "The card security code is invalid. Please check and try again.",
	"invalid_card_number": "The card number is invalid. Please check and try again.",
	"encryption_failed":   "We could not process your card details. Please re-enter them and try again.",
	"validation_error":    "Some payment details are invalid. Please check them and try again.",
	"provider_unavailable": "The payment service is temporarily unavailable. Please try again shortly.",
	"token_request_failed": "The payment service is temporarily unavailable. Please try again shortly.",
}

// UserMessage normalises any gateway failure into a user-safe string.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg, ok := userMessages[apiErr.Code]; ok {
			return msg
		}
	}
	return genericUserMessage
}
