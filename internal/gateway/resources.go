package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// EncryptedCard carries the five pre-encrypted card fields produced by the
// caller. The values are opaque ciphertext and pass through untouched.
type EncryptedCard struct {
	Number      string `json:"encrypted_card_number"`
	CVV         string `json:"encrypted_cvv"`
	ExpiryMonth string `json:"encrypted_expiry_month"`
	ExpiryYear  string `json:"encrypted_expiry_year"`
	PIN         string `json:"encrypted_pin"`
}

const (
	MethodCard        = "card"
	MethodMobileMoney = "mobile_money"
)

type PaymentMethodSpec struct {
	Type       string `json:"type"`
	CustomerID string `json:"customer_id"`

	// mobile money
	Phone   string `json:"phone,omitempty"`
	Network string `json:"network,omitempty"`

	// card
	Card *EncryptedCard `json:"card,omitempty"`
}

func (s PaymentMethodSpec) validate() error {
	switch s.Type {
	case MethodMobileMoney:
		if s.Phone == "" || s.Network == "" {
			return errors.New("mobile money requires phone and network")
		}
	case MethodCard:
		if s.Card == nil {
			return errors.New("card payment method requires encrypted card fields")
		}
		c := s.Card
		if c.Number == "" || c.CVV == "" || c.ExpiryMonth == "" || c.ExpiryYear == "" || c.PIN == "" {
			return errors.New("card payment method requires all five encrypted fields")
		}
	default:
		return fmt.Errorf("unsupported payment method type %q", s.Type)
	}
	return nil
}

type ChargeRequest struct {
	CustomerID      string `json:"customer_id"`
	PaymentMethodID string `json:"payment_method_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Reference       string `json:"reference"`
	RedirectURL     string `json:"redirect_url,omitempty"`
}

type ProcessorResponse struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}

type Charge struct {
	ID                string            `json:"id"`
	TransactionID     string            `json:"transaction_id,omitempty"`
	Reference         string            `json:"reference"`
	Status            string            `json:"status"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	AuthURL           string            `json:"auth_url,omitempty"` // 3DS redirect target when present
	ProcessorResponse ProcessorResponse `json:"processor_response"`
}

type customerResource struct {
	ID string `json:"id"`
}

type paymentMethodResource struct {
	ID string `json:"id"`
}

// CreateCustomer registers the customer with the provider. When the provider
// reports the identity as already taken, the call retries once with a
// uniquified email so checkout is never blocked by a stale remote customer.
func (c *Client) CreateCustomer(ctx context.Context, customer Customer) (string, error) {
	var res customerResource
	err := c.doJSON(ctx, http.MethodPost, "/customers", customer, &res)
	if err == nil {
		return res.ID, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsDuplicate() {
		customer.Email = uniquifyEmail(customer.Email)
		if retryErr := c.doJSON(ctx, http.MethodPost, "/customers", customer, &res); retryErr != nil {
			return "", retryErr
		}
		return res.ID, nil
	}
	return "", err
}

func uniquifyEmail(email string) string {
	local, domainPart, found := strings.Cut(email, "@")
	suffix := fmt.Sprintf("+%d", time.Now().UnixNano())
	if !found {
		return email + suffix
	}
	return local + suffix + "@" + domainPart
}

func (c *Client) CreatePaymentMethod(ctx context.Context, spec PaymentMethodSpec) (string, error) {
	if err := spec.validate(); err != nil {
		return "", err
	}
	var res paymentMethodResource
	if err := c.doJSON(ctx, http.MethodPost, "/payment-methods", spec, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	var charge Charge
	if err := c.doJSON(ctx, http.MethodPost, "/charges", req, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

func (c *Client) VerifyCharge(ctx context.Context, chargeID string) (*Charge, error) {
	var charge Charge
	if err := c.doJSON(ctx, http.MethodGet, "/charges/"+chargeID, nil, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}
