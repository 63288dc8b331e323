package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pollInterval = 50 * time.Millisecond

// releaseScript deletes the lease only while this holder still owns it, so a
// slow holder cannot delete a successor's lease after its TTL expired.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Coordinator grants mutual-exclusion leases keyed by order id. A lease
// auto-expires after TTL so a crashed holder cannot block an order forever.
type Coordinator struct {
	client redis.Cmdable
	log    *zap.Logger
	ttl    time.Duration
}

func NewCoordinator(client redis.Cmdable, log *zap.Logger, ttl time.Duration) *Coordinator {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Coordinator{
		client: client,
		log:    log,
		ttl:    ttl,
	}
}

func leaseKey(orderID string) string {
	return "order:lock:" + orderID
}

// Acquire polls for the lease up to wait. On success it returns a release
// func that must be called on every exit path; ok=false means the lease was
// held elsewhere for the whole window and nothing was acquired.
func (c *Coordinator) Acquire(ctx context.Context, orderID string, wait time.Duration) (release func(), ok bool, err error) {
	key := leaseKey(orderID)
	token := uuid.New().String()
	deadline := time.Now().Add(wait)

	for {
		acquired, err := c.client.SetNX(ctx, key, token, c.ttl).Result()
		if err != nil {
			c.log.Error("failed to acquire order lease", zap.Error(err), zap.String("order_id", orderID))
			return nil, false, err
		}
		if acquired {
			return func() { c.release(orderID, token) }, true, nil
		}
		if time.Now().Add(pollInterval).After(deadline) {
			return nil, false, nil
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (c *Coordinator) release(orderID, token string) {
	// Release must run even when the caller's context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, c.client, []string{leaseKey(orderID)}, token).Err(); err != nil {
		c.log.Error("failed to release order lease", zap.Error(err), zap.String("order_id", orderID))
	}
}
