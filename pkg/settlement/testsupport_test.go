package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joripage/brokerage-api/pkg/settlement/cache"
	"github.com/joripage/brokerage-api/pkg/settlement/model"
	"github.com/joripage/brokerage-api/pkg/settlement/repo"
	"go.uber.org/zap"
)

var testLogger = zap.NewNop()

// memOrderCache mirrors the redis-backed order cache semantics in memory.
type memOrderCache struct {
	mu      sync.Mutex
	records map[string]*cache.OrderRecord
	index   map[int64][]string
	failPut bool
	getErr  error
}

func newMemOrderCache() *memOrderCache {
	return &memOrderCache{
		records: make(map[string]*cache.OrderRecord),
		index:   make(map[int64][]string),
	}
}

func (c *memOrderCache) CacheIntent(_ context.Context, ev *model.OrderEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPut {
		return errors.New("cache unavailable")
	}
	now := time.Now()
	record, ok := c.records[ev.OrderID]
	if !ok {
		record = cache.NewOrderRecord(ev, now)
	} else {
		record.AppendHistory(ev.Kind, "", now)
	}
	c.records[ev.OrderID] = record

	for _, id := range c.index[ev.UserID] {
		if id == ev.OrderID {
			return nil
		}
	}
	c.index[ev.UserID] = append(c.index[ev.UserID], ev.OrderID)
	return nil
}

func (c *memOrderCache) Get(_ context.Context, orderID string) (*cache.OrderRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	record, ok := c.records[orderID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	clone := *record
	clone.History = append([]cache.HistoryEntry(nil), record.History...)
	return &clone, nil
}

func (c *memOrderCache) UpdateStatus(_ context.Context, orderID string, status model.OrderStatus, kind model.TradeKind, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.records[orderID]
	if !ok {
		return nil
	}
	record.Status = status
	record.AppendHistory(kind, reason, time.Now())
	return nil
}

func (c *memOrderCache) Remove(_ context.Context, orderID string, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, orderID)
	ids := c.index[userID]
	for i, id := range ids {
		if id == orderID {
			c.index[userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (c *memOrderCache) UserOrderIDs(_ context.Context, userID int64, page, size int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := c.index[userID]
	// most recent first, like ZREVRANGE
	reversed := make([]string, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		reversed = append(reversed, ids[i])
	}
	start := page * size
	if start >= len(reversed) {
		return nil, nil
	}
	end := start + size
	if end > len(reversed) {
		end = len(reversed)
	}
	return reversed[start:end], nil
}

type memStockCache struct {
	mu     sync.Mutex
	stocks map[string]int64
}

func newMemStockCache() *memStockCache {
	return &memStockCache{stocks: make(map[string]int64)}
}

func (c *memStockCache) Get(_ context.Context, ticker string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	qty, ok := c.stocks[ticker]
	if !ok {
		return 0, cache.ErrCacheMiss
	}
	return qty, nil
}

func (c *memStockCache) Set(_ context.Context, ticker string, quantity int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stocks[ticker] = quantity
	return nil
}

// memLocks gives real mutual exclusion per order id so concurrency tests
// exercise the same contract the redis lease provides.
type memLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocks() *memLocks {
	return &memLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *memLocks) lockFor(orderID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[orderID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[orderID] = m
	}
	return m
}

func (l *memLocks) Acquire(ctx context.Context, orderID string, wait time.Duration) (func(), bool, error) {
	m := l.lockFor(orderID)
	deadline := time.Now().Add(wait)
	for {
		if m.TryLock() {
			return func() { m.Unlock() }, true, nil
		}
		if time.Now().After(deadline) {
			return func() {}, false, nil
		}
		select {
		case <-ctx.Done():
			return func() {}, false, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

type memNotifier struct {
	mu       sync.Mutex
	messages map[int64][]string
}

func newMemNotifier() *memNotifier {
	return &memNotifier{messages: make(map[int64][]string)}
}

func (n *memNotifier) NotifyUser(userID int64, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[userID] = append(n.messages[userID], message)
}

func (n *memNotifier) sent(userID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages[userID]...)
}

type published struct {
	topic string
	key   string
	value any
}

type memPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *memPublisher) PublishJSON(_ context.Context, topic string, key string, v any, _ map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic: topic, key: key, value: v})
	return nil
}

// memRepo is the in-memory ledger used in place of the SQL repos.
type memRepo struct {
	mu         sync.Mutex
	orders     map[string]*model.Order
	histories  []*model.OrderHistory
	stocks     map[string]*model.Stock
	userStocks map[string]*model.UserStock

	stockErr error
	orderErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:     make(map[string]*model.Order),
		stocks:     make(map[string]*model.Stock),
		userStocks: make(map[string]*model.UserStock),
	}
}

func (r *memRepo) Order() repo.IOrder               { return (*memOrderRepo)(r) }
func (r *memRepo) OrderHistory() repo.IOrderHistory { return (*memHistoryRepo)(r) }
func (r *memRepo) Stock() repo.IStock               { return (*memStockRepo)(r) }
func (r *memRepo) UserStock() repo.IUserStock       { return (*memUserStockRepo)(r) }

func holdingKey(userID int64, ticker string) string {
	return fmt.Sprintf("%d:%s", userID, ticker)
}

func (r *memRepo) seedStock(ticker string, qty int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stocks[ticker] = &model.Stock{ID: int64(len(r.stocks) + 1), Ticker: ticker, Quantity: qty}
}

func (r *memRepo) seedHolding(userID int64, ticker string, qty int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userStocks[holdingKey(userID, ticker)] = &model.UserStock{
		UserID: userID, Ticker: ticker, Quantity: qty,
	}
}

func (r *memRepo) stockQty(ticker string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	stock, ok := r.stocks[ticker]
	if !ok {
		return 0
	}
	return stock.Quantity
}

func (r *memRepo) holdingQty(userID int64, ticker string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	holding, ok := r.userStocks[holdingKey(userID, ticker)]
	if !ok {
		return 0
	}
	return holding.Quantity
}

func (r *memRepo) orderStatus(orderID string) model.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return ""
	}
	return order.Status
}

func (r *memRepo) historyCount(orderID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.histories {
		if h.OrderID == orderID {
			n++
		}
	}
	return n
}

type memOrderRepo memRepo

func (r *memOrderRepo) Upsert(_ context.Context, record *model.Order) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	r.orders[record.OrderID] = &clone
	return record, nil
}

func (r *memOrderRepo) FindByIDWithHistories(_ context.Context, orderID string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.orderErr != nil {
		return nil, r.orderErr
	}
	order, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	clone := *order
	for _, h := range r.histories {
		if h.OrderID == orderID {
			entry := *h
			clone.Histories = append(clone.Histories, &entry)
		}
	}
	return &clone, nil
}

func (r *memOrderRepo) FindByUser(_ context.Context, userID int64, page, size int) ([]*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*model.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			clone := *order
			matched = append(matched, &clone)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	start := page * size
	if start >= len(matched) {
		return nil, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

type memHistoryRepo memRepo

func (r *memHistoryRepo) Create(_ context.Context, record *model.OrderHistory) (*model.OrderHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	r.histories = append(r.histories, &clone)
	return record, nil
}

type memStockRepo memRepo

func (r *memStockRepo) FindByTicker(_ context.Context, ticker string) (*model.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stockErr != nil {
		return nil, r.stockErr
	}
	stock, ok := r.stocks[ticker]
	if !ok {
		return nil, nil
	}
	clone := *stock
	return &clone, nil
}

func (r *memStockRepo) Save(_ context.Context, record *model.Stock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stockErr != nil {
		return r.stockErr
	}
	clone := *record
	r.stocks[record.Ticker] = &clone
	return nil
}

type memUserStockRepo memRepo

func (r *memUserStockRepo) FindByUserAndTicker(_ context.Context, userID int64, ticker string) (*model.UserStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	holding, ok := r.userStocks[holdingKey(userID, ticker)]
	if !ok {
		return nil, nil
	}
	clone := *holding
	return &clone, nil
}

func (r *memUserStockRepo) Save(_ context.Context, record *model.UserStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	r.userStocks[holdingKey(record.UserID, record.Ticker)] = &clone
	return nil
}

// fixture bundles the wired settler with its fakes.
type fixture struct {
	repo       *memRepo
	orderCache *memOrderCache
	stockCache *memStockCache
	locks      *memLocks
	notifier   *memNotifier
	settler    *Settler
}

func newFixture(limit int64) *fixture {
	f := &fixture{
		repo:       newMemRepo(),
		orderCache: newMemOrderCache(),
		stockCache: newMemStockCache(),
		locks:      newMemLocks(),
		notifier:   newMemNotifier(),
	}
	f.settler = NewSettler(f.repo, f.orderCache, f.stockCache, f.locks, f.notifier,
		SettlerConfig{SystemStockLimit: limit, LockWait: 200 * time.Millisecond}, testLogger)
	return f
}

// cacheIntent mimics what intake does before the event reaches the settler.
func (f *fixture) cacheIntent(t interface{ Fatalf(string, ...any) }, ev *model.OrderEvent) {
	if err := f.orderCache.CacheIntent(context.Background(), ev); err != nil {
		t.Fatalf("cache intent: %v", err)
	}
}
