package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/uhs-developer/kora/internal/domain"
)

const (
	KindPaymentSuccess = "payment_success"
	KindPaymentFailure = "payment_failure"
)

// Message is the payload published for downstream notification workers
// (email, SMS) to act on.
type Message struct {
	Kind        string    `json:"kind"`
	OrderNumber string    `json:"order_number"`
	Email       string    `json:"email"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Reason      string    `json:"reason,omitempty"`
	ChargeID    string    `json:"charge_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier publishes payment notifications, deduplicated through the
// send gate so a customer hears about each charge outcome at most once.
type KafkaNotifier struct {
	writer messageWriter
	gate   *SendGate
	now    func() time.Time
}

func NewKafkaNotifier(gate *SendGate, topic string, brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w, gate: gate, now: time.Now}
}

func (n *KafkaNotifier) PaymentSucceeded(ctx context.Context, order *domain.Order) error {
	return n.publish(ctx, order, Message{
		Kind:        KindPaymentSuccess,
		OrderNumber: order.OrderNumber,
		Email:       order.CustomerEmail,
		Amount:      order.GrandTotal,
		Currency:    order.Currency,
		ChargeID:    order.PaymentMeta.ChargeID,
	})
}

func (n *KafkaNotifier) PaymentFailed(ctx context.Context, order *domain.Order, reason string) error {
	return n.publish(ctx, order, Message{
		Kind:        KindPaymentFailure,
		OrderNumber: order.OrderNumber,
		Email:       order.CustomerEmail,
		Amount:      order.GrandTotal,
		Currency:    order.Currency,
		Reason:      reason,
		ChargeID:    order.PaymentMeta.ChargeID,
	})
}

func (n *KafkaNotifier) publish(ctx context.Context, order *domain.Order, msg Message) error {
	if !n.gate.ShouldSend(ctx, msg.OrderNumber, msg.Kind, msg.ChargeID) {
		log.Printf("order %s: %s notification already sent for charge %s, skipping",
			msg.OrderNumber, msg.Kind, msg.ChargeID)
		return nil
	}

	msg.OccurredAt = n.now()
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", msg.Kind, err)
	}

	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.OrderNumber), // per-order ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.Kind)},
		},
	})
}

// Close flushes and closes the underlying writer when there is one.
func (n *KafkaNotifier) Close() error {
	if w, ok := n.writer.(*kafka.Writer); ok {
		return w.Close()
	}
	return nil
}
