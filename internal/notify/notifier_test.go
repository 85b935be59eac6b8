package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uhs-developer/kora/internal/domain"
)

type mockWriter struct {
	Messages []kafka.Message
	Err      error
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.Err != nil {
		return w.Err
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func testNotifier(t *testing.T) (*KafkaNotifier, *mockWriter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	w := &mockWriter{}
	n := &KafkaNotifier{
		writer: w,
		gate:   NewSendGate(rdb, time.Hour),
		now:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return n, w, mr
}

func testOrder() *domain.Order {
	return &domain.Order{
		OrderNumber:   "ORD1234567890",
		CustomerEmail: "jane@example.com",
		GrandTotal:    13325,
		Currency:      "NGN",
		PaymentMeta:   domain.PaymentMetadata{ChargeID: "chg_1"},
	}
}

func TestPaymentSucceeded_PublishesOnce(t *testing.T) {
	n, w, _ := testNotifier(t)
	order := testOrder()

	require.NoError(t, n.PaymentSucceeded(context.Background(), order))
	require.NoError(t, n.PaymentSucceeded(context.Background(), order))

	require.Len(t, w.Messages, 1, "gate must swallow the re-delivery")
	msg := w.Messages[0]
	assert.Equal(t, []byte(order.OrderNumber), msg.Key)

	var payload Message
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, KindPaymentSuccess, payload.Kind)
	assert.Equal(t, "jane@example.com", payload.Email)
	assert.Equal(t, int64(13325), payload.Amount)
	assert.Equal(t, "chg_1", payload.ChargeID)
}

func TestPaymentFailed_CarriesReason(t *testing.T) {
	n, w, _ := testNotifier(t)

	require.NoError(t, n.PaymentFailed(context.Background(), testOrder(), "Insufficient funds"))

	require.Len(t, w.Messages, 1)
	var payload Message
	require.NoError(t, json.Unmarshal(w.Messages[0].Value, &payload))
	assert.Equal(t, KindPaymentFailure, payload.Kind)
	assert.Equal(t, "Insufficient funds", payload.Reason)
}

func TestGate_SuccessAndFailureAreSeparateSlots(t *testing.T) {
	n, w, _ := testNotifier(t)
	order := testOrder()

	require.NoError(t, n.PaymentFailed(context.Background(), order, "declined"))
	require.NoError(t, n.PaymentSucceeded(context.Background(), order))

	assert.Len(t, w.Messages, 2)
}

func TestGate_DistinctChargesNotifySeparately(t *testing.T) {
	n, w, _ := testNotifier(t)
	order := testOrder()

	require.NoError(t, n.PaymentFailed(context.Background(), order, "declined"))
	order.PaymentMeta.ChargeID = "chg_2"
	require.NoError(t, n.PaymentFailed(context.Background(), order, "declined again"))

	assert.Len(t, w.Messages, 2)
}

func TestGate_FailsOpenWhenRedisDown(t *testing.T) {
	n, w, mr := testNotifier(t)
	mr.Close()

	require.NoError(t, n.PaymentSucceeded(context.Background(), testOrder()))
	assert.Len(t, w.Messages, 1, "redis outage must not mute notifications")
}

func TestGate_SlotExpires(t *testing.T) {
	n, w, mr := testNotifier(t)
	order := testOrder()

	require.NoError(t, n.PaymentSucceeded(context.Background(), order))
	mr.FastForward(2 * time.Hour)
	require.NoError(t, n.PaymentSucceeded(context.Background(), order))

	assert.Len(t, w.Messages, 2)
}
