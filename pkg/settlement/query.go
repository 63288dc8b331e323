package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/joripage/brokerage-api/pkg/settlement/cache"
	"github.com/joripage/brokerage-api/pkg/settlement/model"
	"github.com/joripage/brokerage-api/pkg/settlement/repo"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 10
)

// OrderDetail is the read model served by the query facade, assembled from
// the cache when possible and from the ledger otherwise.
type OrderDetail struct {
	OrderID   string
	UserID    int64
	Ticker    string
	Kind      model.TradeKind
	Quantity  int64
	Status    model.OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	History   []cache.HistoryEntry
}

// Query answers order lookups, cache first with a durable fallback. It is
// read-only and side-channel to the settlement flow.
type Query struct {
	orderCache OrderCache
	orders     repo.IOrder
	log        *zap.Logger
}

func NewQuery(orderCache OrderCache, orders repo.IOrder, log *zap.Logger) *Query {
	return &Query{
		orderCache: orderCache,
		orders:     orders,
		log:        log,
	}
}

func (q *Query) GetOrder(ctx context.Context, orderID string) (*OrderDetail, error) {
	record, err := q.orderCache.Get(ctx, orderID)
	if err == nil {
		return detailFromRecord(record), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		q.log.Warn("order cache read failed, falling back to ledger",
			zap.Error(err), zap.String("order_id", orderID))
	}

	order, err := q.orders.FindByIDWithHistories(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return detailFromOrder(order), nil
}

// GetOrdersForUser pages the user's orders most recent first. The cached
// index is the fast path; duplicate-id fragments merge by concatenating
// their history lists. An empty index falls back to a durable paged query.
func (q *Query) GetOrdersForUser(ctx context.Context, userID int64, page, size int) ([]*OrderDetail, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}

	ids, err := q.orderCache.UserOrderIDs(ctx, userID, page, size)
	if err != nil {
		q.log.Warn("user order index read failed, falling back to ledger",
			zap.Error(err), zap.Int64("user_id", userID))
		ids = nil
	}
	if len(ids) == 0 {
		orders, err := q.orders.FindByUser(ctx, userID, page, size)
		if err != nil {
			return nil, err
		}
		details := make([]*OrderDetail, 0, len(orders))
		for _, order := range orders {
			details = append(details, detailFromOrder(order))
		}
		return details, nil
	}

	byID := make(map[string]*OrderDetail)
	details := make([]*OrderDetail, 0, len(ids))
	for _, id := range ids {
		record, err := q.orderCache.Get(ctx, id)
		if err != nil {
			if !errors.Is(err, cache.ErrCacheMiss) {
				q.log.Warn("failed to resolve cached order",
					zap.Error(err), zap.String("order_id", id))
			}
			continue
		}
		if existing, ok := byID[id]; ok {
			existing.History = append(existing.History, record.History...)
			continue
		}
		detail := detailFromRecord(record)
		byID[id] = detail
		details = append(details, detail)
	}

	return details, nil
}

func detailFromRecord(record *cache.OrderRecord) *OrderDetail {
	return &OrderDetail{
		OrderID:   record.OrderID,
		UserID:    record.UserID,
		Ticker:    record.Ticker,
		Kind:      record.Kind,
		Quantity:  record.Quantity,
		Status:    record.Status,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
		History:   record.History,
	}
}

func detailFromOrder(order *model.Order) *OrderDetail {
	history := make([]cache.HistoryEntry, 0, len(order.Histories))
	for _, h := range order.Histories {
		history = append(history, cache.HistoryEntry{
			Kind:      h.Kind,
			Timestamp: h.CreatedAt,
			Reason:    h.Reason,
		})
	}
	return &OrderDetail{
		OrderID:   order.OrderID,
		UserID:    order.UserID,
		Ticker:    order.Ticker,
		Kind:      order.Kind,
		Quantity:  order.Quantity,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
		History:   history,
	}
}
