package settlement

import (
	"context"
	"time"

	"github.com/joripage/brokerage-api/pkg/settlement/cache"
	"github.com/joripage/brokerage-api/pkg/settlement/model"
)

// OrderCache is the fast shared view of order state.
type OrderCache interface {
	CacheIntent(ctx context.Context, ev *model.OrderEvent) error
	Get(ctx context.Context, orderID string) (*cache.OrderRecord, error)
	UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus, kind model.TradeKind, reason string) error
	Remove(ctx context.Context, orderID string, userID int64) error
	UserOrderIDs(ctx context.Context, userID int64, page, size int) ([]string, error)
}

// StockCache is the per-ticker system stock accelerator.
type StockCache interface {
	Get(ctx context.Context, ticker string) (int64, error)
	Set(ctx context.Context, ticker string, quantity int64) error
}

// LockCoordinator grants the per-order-id mutual-exclusion lease.
type LockCoordinator interface {
	Acquire(ctx context.Context, orderID string, wait time.Duration) (release func(), ok bool, err error)
}

// Notifier sends a best-effort message to a user without blocking.
type Notifier interface {
	NotifyUser(userID int64, message string)
}

// Publisher hands an event to the transport.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, key string, v any, headers map[string]string) error
}
