package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

// tokenExpiryLeeway triggers a proactive refresh shortly before the cached
// OAuth token actually expires.
const tokenExpiryLeeway = 60 * time.Second

type Config struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	WebhookSecret string
	Timeout       time.Duration
}

// Client talks to the external payment provider. The breaker only counts
// transport failures and 5xx responses; a declined card is a business
// outcome, not a provider outage.
type Client struct {
	baseURL       string
	clientID      string
	clientSecret  string
	webhookSecret string

	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*apiResponse]
	sfg        singleflight.Group

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*apiResponse](gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		webhookSecret: cfg.WebhookSecret,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
	}
}

func (c *Client) Configured() bool {
	return c.baseURL != "" && c.clientID != "" && c.clientSecret != ""
}

func (c *Client) SecretConfigured() bool {
	return c.webhookSecret != ""
}

// VerifyWebhookSignature checks the HMAC-SHA256 of the raw payload against
// the hex signature from the verif-hash header, in constant time. With no
// secret configured it reports true; callers decide whether that permissive
// development mode is acceptable.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	if c.webhookSecret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// token returns a cached OAuth token, fetching a new one when missing or
// within the expiry leeway. Singleflight collapses concurrent refreshes; a
// redundant refresh is harmless, bearer tokens are not counters.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryLeeway)) {
		t := c.accessToken
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	v, err, _ := c.sfg.Do("oauth-token", func() (interface{}, error) {
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Code: "token_request_failed",
			Message: fmt.Sprintf("token endpoint returned %d", resp.StatusCode)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", &APIError{Status: resp.StatusCode, Code: "token_request_failed",
			Message: "token endpoint returned an empty access token"}
	}

	c.mu.Lock()
	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.mu.Unlock()

	return tok.AccessToken, nil
}

type apiResponse struct {
	status int
	body   []byte
}

type apiEnvelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doJSON performs an authenticated call and decodes the data envelope into
// out. Non-2xx responses come back as *APIError.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if in != nil {
		payload, mErr := json.Marshal(in)
		if mErr != nil {
			return fmt.Errorf("marshal request body: %w", mErr)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.breaker.Execute(func() (*apiResponse, error) {
		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return nil, fmt.Errorf("gateway request: %w", doErr)
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if readErr != nil {
			return nil, fmt.Errorf("read gateway response: %w", readErr)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &APIError{Status: resp.StatusCode, Code: "provider_unavailable",
				Message: fmt.Sprintf("provider returned %d", resp.StatusCode)}
		}
		return &apiResponse{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		return err
	}

	var envelope apiEnvelope
	if len(res.body) > 0 {
		if uErr := json.Unmarshal(res.body, &envelope); uErr != nil {
			return fmt.Errorf("decode gateway response: %w", uErr)
		}
	}

	if res.status >= http.StatusBadRequest {
		return &APIError{Status: res.status, Code: envelope.Code, Message: envelope.Message}
	}

	if out != nil {
		data := envelope.Data
		if len(data) == 0 {
			data = res.body
		}
		if uErr := json.Unmarshal(data, out); uErr != nil {
			return fmt.Errorf("decode gateway payload: %w", uErr)
		}
	}
	return nil
}
