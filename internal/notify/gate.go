package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// SendGate deduplicates customer notifications across the racing callback
// and webhook paths. SETNX on a per-(order, kind, charge) key means the
// first caller wins and every re-delivery within the TTL stays silent.
type SendGate struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSendGate(rdb *redis.Client, ttl time.Duration) *SendGate {
	return &SendGate{rdb: rdb, ttl: ttl}
}

func gateKey(orderNumber, kind, chargeID string) string {
	return fmt.Sprintf("notify:sent:%s:%s:%s", orderNumber, kind, chargeID)
}

// ShouldSend claims the notification slot. Redis being down must not
// swallow customer notifications, so errors fail open; the worst case is a
// duplicate email, not a missing one.
func (g *SendGate) ShouldSend(ctx context.Context, orderNumber, kind, chargeID string) bool {
	if g == nil || g.rdb == nil {
		return true
	}
	ok, err := g.rdb.SetNX(ctx, gateKey(orderNumber, kind, chargeID), 1, g.ttl).Result()
	if err != nil {
		log.Printf("notification gate unavailable for order %s (%s): %v", orderNumber, kind, err)
		return true
	}
	return ok
}
