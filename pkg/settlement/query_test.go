package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/joripage/brokerage-api/pkg/settlement/model"
)

func TestGetOrderPrefersCache(t *testing.T) {
	orderCache := newMemOrderCache()
	ledger := newMemRepo()
	query := NewQuery(orderCache, ledger.Order(), testLogger)

	ev := model.NewOrderEventBuy("q-1", 7, "AAPL", 30, time.Now())
	if err := orderCache.CacheIntent(context.Background(), ev); err != nil {
		t.Fatalf("cache intent: %v", err)
	}

	detail, err := query.GetOrder(context.Background(), "q-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if detail.OrderID != "q-1" || detail.Status != model.OrderStatusCreated {
		t.Errorf("detail = %+v", detail)
	}
	if len(detail.History) != 1 {
		t.Errorf("history = %+v, want the intake entry", detail.History)
	}
}

func TestGetOrderFallsBackToLedger(t *testing.T) {
	orderCache := newMemOrderCache()
	ledger := newMemRepo()
	query := NewQuery(orderCache, ledger.Order(), testLogger)

	now := time.Now()
	if _, err := ledger.Order().Upsert(context.Background(), &model.Order{
		OrderID: "q-2", UserID: 7, Ticker: "AAPL", Kind: model.TradeKindBuy,
		Quantity: 30, Status: model.OrderStatusCompleted, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if _, err := ledger.OrderHistory().Create(context.Background(), &model.OrderHistory{
		TransactionID: "t-1", OrderID: "q-2", UserID: 7, Ticker: "AAPL",
		Kind: model.TradeKindBuy, Quantity: 30, CreatedAt: now,
	}); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	detail, err := query.GetOrder(context.Background(), "q-2")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if detail.Status != model.OrderStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", detail.Status)
	}
	if len(detail.History) != 1 || detail.History[0].Kind != model.TradeKindBuy {
		t.Errorf("history = %+v", detail.History)
	}
}

func TestGetOrderUnknownID(t *testing.T) {
	query := NewQuery(newMemOrderCache(), newMemRepo().Order(), testLogger)

	_, err := query.GetOrder(context.Background(), "missing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestGetOrdersForUserPagesMostRecentFirst(t *testing.T) {
	orderCache := newMemOrderCache()
	ledger := newMemRepo()
	query := NewQuery(orderCache, ledger.Order(), testLogger)

	base := time.Now()
	for i := 0; i < 5; i++ {
		ev := model.NewOrderEventBuy(fmt.Sprintf("q-u-%d", i), 7, "AAPL", 10, base.Add(time.Duration(i)*time.Second))
		if err := orderCache.CacheIntent(context.Background(), ev); err != nil {
			t.Fatalf("cache intent %d: %v", i, err)
		}
	}

	first, err := query.GetOrdersForUser(context.Background(), 7, 0, 2)
	if err != nil {
		t.Fatalf("page 0: %v", err)
	}
	if len(first) != 2 || first[0].OrderID != "q-u-4" || first[1].OrderID != "q-u-3" {
		t.Errorf("page 0 = %v", orderIDs(first))
	}

	second, err := query.GetOrdersForUser(context.Background(), 7, 1, 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(second) != 2 || second[0].OrderID != "q-u-2" || second[1].OrderID != "q-u-1" {
		t.Errorf("page 1 = %v", orderIDs(second))
	}
}

func TestGetOrdersForUserFallsBackWhenIndexEmpty(t *testing.T) {
	orderCache := newMemOrderCache()
	ledger := newMemRepo()
	query := NewQuery(orderCache, ledger.Order(), testLogger)

	now := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := ledger.Order().Upsert(context.Background(), &model.Order{
			OrderID: fmt.Sprintf("q-f-%d", i), UserID: 7, Ticker: "AAPL",
			Kind: model.TradeKindBuy, Quantity: 10, Status: model.OrderStatusCompleted,
			CreatedAt: now.Add(time.Duration(i) * time.Second), UpdatedAt: now,
		}); err != nil {
			t.Fatalf("seed order %d: %v", i, err)
		}
	}

	details, err := query.GetOrdersForUser(context.Background(), 7, 0, 10)
	if err != nil {
		t.Fatalf("get orders: %v", err)
	}
	if len(details) != 3 || details[0].OrderID != "q-f-2" {
		t.Errorf("details = %v", orderIDs(details))
	}
}

// dupIndexCache serves an index page with a repeated order id, as a stale
// index can after partial compensation.
type dupIndexCache struct {
	*memOrderCache
}

func (c *dupIndexCache) UserOrderIDs(ctx context.Context, userID int64, page, size int) ([]string, error) {
	ids, err := c.memOrderCache.UserOrderIDs(ctx, userID, page, size)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	return append(ids, ids[0]), nil
}

func TestGetOrdersForUserMergesDuplicateIDs(t *testing.T) {
	orderCache := &dupIndexCache{memOrderCache: newMemOrderCache()}
	ledger := newMemRepo()
	query := NewQuery(orderCache, ledger.Order(), testLogger)

	now := time.Now()
	buy := model.NewOrderEventBuy("q-d-1", 7, "AAPL", 10, now)
	if err := orderCache.CacheIntent(context.Background(), buy); err != nil {
		t.Fatalf("cache intent: %v", err)
	}
	cancel := model.NewOrderEventCancel("q-d-1", 7, "AAPL", now)
	if err := orderCache.CacheIntent(context.Background(), cancel); err != nil {
		t.Fatalf("cache cancel intent: %v", err)
	}

	details, err := query.GetOrdersForUser(context.Background(), 7, 0, 10)
	if err != nil {
		t.Fatalf("get orders: %v", err)
	}
	if len(details) != 1 {
		t.Fatalf("details = %v, want the duplicates merged into one", orderIDs(details))
	}
	// The record carries two history entries; the duplicate fragment
	// concatenates them again.
	if got := len(details[0].History); got != 4 {
		t.Errorf("merged history length = %d, want 4", got)
	}
}

func TestGetOrdersForUserNormalizesPaging(t *testing.T) {
	orderCache := newMemOrderCache()
	ledger := newMemRepo()
	query := NewQuery(orderCache, ledger.Order(), testLogger)

	ev := model.NewOrderEventBuy("q-n-1", 7, "AAPL", 10, time.Now())
	if err := orderCache.CacheIntent(context.Background(), ev); err != nil {
		t.Fatalf("cache intent: %v", err)
	}

	details, err := query.GetOrdersForUser(context.Background(), 7, -3, 0)
	if err != nil {
		t.Fatalf("get orders: %v", err)
	}
	if len(details) != 1 || details[0].OrderID != "q-n-1" {
		t.Errorf("details = %v", orderIDs(details))
	}
}

func orderIDs(details []*OrderDetail) []string {
	ids := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.OrderID)
	}
	return ids
}
