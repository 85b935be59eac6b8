package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Minute, cfg.PaymentTimeout)
	assert.Equal(t, time.Minute, cfg.ReaperInterval)
	assert.True(t, cfg.WebhookStrict, "webhooks fail closed by default")
	assert.False(t, cfg.ReaperDryRun)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PAYMENT_TIMEOUT_MIN", "45")
	t.Setenv("REAPER_INTERVAL_SEC", "30")
	t.Setenv("REAPER_DRY_RUN", "true")
	t.Setenv("PAYMENT_WEBHOOK_STRICT", "false")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Minute, cfg.PaymentTimeout)
	assert.Equal(t, 30*time.Second, cfg.ReaperInterval)
	assert.True(t, cfg.ReaperDryRun)
	assert.False(t, cfg.WebhookStrict)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_RejectsBadDurations(t *testing.T) {
	t.Setenv("PAYMENT_TIMEOUT_MIN", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_PartialGatewayConfigRejected(t *testing.T) {
	t.Setenv("GATEWAY_BASE_URL", "https://api.gateway.example")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_CLIENT_ID")
}

func TestLoad_FullGatewayConfigAccepted(t *testing.T) {
	t.Setenv("GATEWAY_BASE_URL", "https://api.gateway.example")
	t.Setenv("GATEWAY_CLIENT_ID", "cid")
	t.Setenv("GATEWAY_CLIENT_SECRET", "secret")
	t.Setenv("PAYMENT_CALLBACK_URL", "https://shop.example/payment/callback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.gateway.example", cfg.GatewayBaseURL)
}
