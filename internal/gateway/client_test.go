package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:       srv.URL,
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		WebhookSecret: "whsec",
		Timeout:       2 * time.Second,
	})
	return srv, client
}

func writeToken(w http.ResponseWriter) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": "tok-abc",
		"expires_in":   3600,
		"token_type":   "Bearer",
	})
}

func TestTokenCaching(t *testing.T) {
	var tokenCalls int64

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			atomic.AddInt64(&tokenCalls, 1)
			writeToken(w)
		case "/charges/chg_1":
			assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "success",
				"data":   map[string]interface{}{"id": "chg_1", "status": "succeeded", "reference": "r"},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		charge, err := client.VerifyCharge(ctx, "chg_1")
		require.NoError(t, err)
		assert.Equal(t, "succeeded", charge.Status)
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&tokenCalls), "token should be fetched once and cached")
}

func TestTokenRefreshNearExpiry(t *testing.T) {
	var tokenCalls int64

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			atomic.AddInt64(&tokenCalls, 1)
			// expires_in below the 60s leeway, so every call refreshes
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "tok-short",
				"expires_in":   10,
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"id": "chg_1", "status": "pending", "reference": "r"},
		})
	})

	ctx := context.Background()
	_, err := client.VerifyCharge(ctx, "chg_1")
	require.NoError(t, err)
	_, err = client.VerifyCharge(ctx, "chg_1")
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&tokenCalls))
}

func TestCreateCustomer_RetriesOnDuplicate(t *testing.T) {
	var emails []string

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			writeToken(w)
		case "/customers":
			var body Customer
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			emails = append(emails, body.Email)

			if len(emails) == 1 {
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "customer_already_exists",
					"message": "customer exists",
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "success",
				"data":   map[string]string{"id": "cus_2"},
			})
		}
	})

	id, err := client.CreateCustomer(context.Background(), Customer{
		Name:  "Ama Mensah",
		Email: "ama@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_2", id)

	require.Len(t, emails, 2)
	assert.Equal(t, "ama@example.com", emails[0])
	assert.NotEqual(t, emails[0], emails[1], "retry must uniquify the email")
	assert.Contains(t, emails[1], "@example.com")
}

func TestCreatePaymentMethod_Validation(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused", ClientID: "x", ClientSecret: "y"})

	_, err := client.CreatePaymentMethod(context.Background(), PaymentMethodSpec{
		Type:       MethodCard,
		CustomerID: "cus_1",
		Card:       &EncryptedCard{Number: "enc", CVV: "enc"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "five encrypted fields")

	_, err = client.CreatePaymentMethod(context.Background(), PaymentMethodSpec{
		Type:       MethodMobileMoney,
		CustomerID: "cus_1",
		Phone:      "233200000000",
	})
	require.Error(t, err)

	_, err = client.CreatePaymentMethod(context.Background(), PaymentMethodSpec{
		Type: "bank_transfer",
	})
	require.Error(t, err)
}

func TestCreateCharge_APIError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			writeToken(w)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "insufficient_funds",
			"message": "balance too low",
		})
	})

	_, err := client.CreateCharge(context.Background(), ChargeRequest{
		Amount: 1000, Currency: "GHS", Reference: "KORAORD1X2",
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "insufficient_funds", apiErr.Code)
	assert.Contains(t, UserMessage(err), "Insufficient funds")
}

func TestUserMessage_Table(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"card_expired", "expired"},
		{"card_declined", "declined"},
		{"insufficient_funds", "Insufficient funds"},
		{"encryption_failed", "card details"},
		{"some_new_code", "try again or use a different payment method"},
	}
	for _, tt := range tests {
		msg := UserMessage(&APIError{Status: 400, Code: tt.code})
		assert.Contains(t, msg, tt.want, "code=%s", tt.code)
	}

	// Non-API errors also normalise to the generic message.
	assert.Equal(t, genericUserMessage, UserMessage(assert.AnError))
	assert.Equal(t, "", UserMessage(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := NewClient(Config{WebhookSecret: "whsec"})

	payload := []byte(`{"event":"charge.completed"}`)
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, client.VerifyWebhookSignature(payload, sig))
	assert.True(t, client.VerifyWebhookSignature(payload, " "+sig+" "), "surrounding whitespace tolerated")
	assert.False(t, client.VerifyWebhookSignature(payload, "deadbeef"))
	assert.False(t, client.VerifyWebhookSignature([]byte(`tampered`), sig))

	// No secret configured: verification is skipped entirely.
	open := NewClient(Config{})
	assert.True(t, open.VerifyWebhookSignature(payload, "anything"))
	assert.False(t, open.SecretConfigured())
}

func TestGenerateReference(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ref := GenerateReference("ORD-3F2A9C1B44", now)

	assert.True(t, HasGeneratedPrefix(ref))
	assert.Contains(t, ref, "ORD3F2A9C1B44", "order identity survives sanitisation")
	for _, r := range ref {
		valid := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		assert.True(t, valid, "reference must be alphanumeric, got %q", r)
	}

	later := GenerateReference("ORD-3F2A9C1B44", now.Add(time.Nanosecond))
	assert.NotEqual(t, ref, later)
}

func TestCleanReference(t *testing.T) {
	assert.Equal(t, "KORAORD1AB2", CleanReference("KORA-ORD_1AB2!"))
	assert.False(t, HasGeneratedPrefix("ORD1AB2"))
}
