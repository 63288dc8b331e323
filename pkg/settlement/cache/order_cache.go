package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joripage/brokerage-api/pkg/settlement/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrCacheMiss = errors.New("cache miss")

// OrderCache is the fast shared view of order state: one JSON record per
// order plus a per-user sorted set of order ids scored by intake time.
type OrderCache struct {
	client redis.Cmdable
	log    *zap.Logger
}

func NewOrderCache(client redis.Cmdable, log *zap.Logger) *OrderCache {
	return &OrderCache{
		client: client,
		log:    log,
	}
}

func orderKey(orderID string) string {
	return "order:" + orderID
}

func userOrdersKey(userID int64) string {
	return fmt.Sprintf("user:%d:orders", userID)
}

// CacheIntent writes the intent for ev ahead of the Kafka publish. A fresh
// order id creates a CREATED record; an existing record only gains a history
// entry, which is how a CANCEL intent leaves its marker on the original order.
// The order id is always (re)added to the user's index.
func (c *OrderCache) CacheIntent(ctx context.Context, ev *model.OrderEvent) error {
	now := time.Now()

	record, err := c.Get(ctx, ev.OrderID)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		return err
	}
	if record == nil {
		record = NewOrderRecord(ev, now)
	} else {
		record.AppendHistory(ev.Kind, "", now)
	}

	if err := c.put(ctx, record); err != nil {
		return err
	}

	if err := c.client.ZAdd(ctx, userOrdersKey(ev.UserID), redis.Z{
		Score:  float64(now.Unix()),
		Member: ev.OrderID,
	}).Err(); err != nil {
		c.log.Error("failed to index order for user",
			zap.Error(err), zap.String("order_id", ev.OrderID), zap.Int64("user_id", ev.UserID))
		return err
	}

	return nil
}

// Get returns ErrCacheMiss when no record exists for orderID.
func (c *OrderCache) Get(ctx context.Context, orderID string) (*OrderRecord, error) {
	data, err := c.client.Get(ctx, orderKey(orderID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		c.log.Error("failed to get order from cache", zap.Error(err), zap.String("order_id", orderID))
		return nil, err
	}
	return UnmarshalOrderRecord([]byte(data))
}

// UpdateStatus sets the cached status and appends the settlement attempt to
// the cached history. Missing records are ignored: the ledger already holds
// the outcome and the next read falls through to it.
func (c *OrderCache) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus, kind model.TradeKind, reason string) error {
	record, err := c.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		return err
	}

	now := time.Now()
	record.Status = status
	record.AppendHistory(kind, reason, now)
	return c.put(ctx, record)
}

// Remove deletes the record and its index entry. Used by intake to
// compensate a failed publish.
func (c *OrderCache) Remove(ctx context.Context, orderID string, userID int64) error {
	if err := c.client.Del(ctx, orderKey(orderID)).Err(); err != nil {
		c.log.Error("failed to remove cached order", zap.Error(err), zap.String("order_id", orderID))
		return err
	}
	if err := c.client.ZRem(ctx, userOrdersKey(userID), orderID).Err(); err != nil {
		c.log.Error("failed to remove order from user index", zap.Error(err), zap.String("order_id", orderID))
		return err
	}
	return nil
}

// UserOrderIDs returns one page of the user's order ids, most recent first.
func (c *OrderCache) UserOrderIDs(ctx context.Context, userID int64, page, size int) ([]string, error) {
	start := int64(page * size)
	stop := start + int64(size) - 1
	ids, err := c.client.ZRevRange(ctx, userOrdersKey(userID), start, stop).Result()
	if err != nil {
		c.log.Error("failed to range user order index", zap.Error(err), zap.Int64("user_id", userID))
		return nil, err
	}
	return ids, nil
}

func (c *OrderCache) put(ctx context.Context, record *OrderRecord) error {
	data, err := record.Marshal()
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, orderKey(record.OrderID), data, 0).Err(); err != nil {
		c.log.Error("failed to set order in cache", zap.Error(err), zap.String("order_id", record.OrderID))
		return err
	}
	return nil
}
