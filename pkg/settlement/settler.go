package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joripage/brokerage-api/pkg/settlement/cache"
	"github.com/joripage/brokerage-api/pkg/settlement/model"
	"github.com/joripage/brokerage-api/pkg/settlement/repo"
	"go.uber.org/zap"
)

const genericFailureMessage = "Order failed due to a system error."

// SettlerConfig bounds the lease wait and caps system inventory. The limit
// bounds how far sell returns can grow a ticker's system stock.
type SettlerConfig struct {
	SystemStockLimit int64
	LockWait         time.Duration
}

// Settler drives one order event through the settlement state machine:
// CREATED -> {COMPLETED, CANCELLED, FAILED}, all terminal. Every mutation to
// the order and to its ticker's inventory happens inside the order lease.
type Settler struct {
	orders       repo.IOrder
	histories    repo.IOrderHistory
	stocks       repo.IStock
	userStocks   repo.IUserStock
	orderCache   OrderCache
	stockCache   StockCache
	locks        LockCoordinator
	notifier     Notifier
	cfg          SettlerConfig
	log          *zap.Logger
	abandonCount atomic.Int64
}

func NewSettler(
	r repo.IRepo,
	orderCache OrderCache,
	stockCache StockCache,
	locks LockCoordinator,
	notifier Notifier,
	cfg SettlerConfig,
	log *zap.Logger,
) *Settler {
	if cfg.LockWait == 0 {
		cfg.LockWait = 10 * time.Second
	}
	return &Settler{
		orders:     r.Order(),
		histories:  r.OrderHistory(),
		stocks:     r.Stock(),
		userStocks: r.UserStock(),
		orderCache: orderCache,
		stockCache: stockCache,
		locks:      locks,
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
	}
}

// AbandonedAttempts counts lease acquisitions that timed out. Those attempts
// mutate nothing and rely on broker redelivery.
func (s *Settler) AbandonedAttempts() int64 {
	return s.abandonCount.Load()
}

// Process settles one order event. It returns ErrLockNotAcquired when the
// lease could not be taken within the wait bound (nothing happened, do not
// commit the event), and a plain error when the status guard could not be
// read at all (nothing mutated, the consumer retries the event). Every other
// outcome, success or terminal failure, is fully handled here and returns
// nil.
func (s *Settler) Process(ctx context.Context, ev *model.OrderEvent) error {
	release, ok, err := s.locks.Acquire(ctx, ev.OrderID, s.cfg.LockWait)
	if err != nil {
		return fmt.Errorf("acquire lease for order %s: %w", ev.OrderID, err)
	}
	if !ok {
		s.abandonCount.Add(1)
		s.log.Warn("unable to acquire lock for order, attempt abandoned",
			zap.String("order_id", ev.OrderID))
		return ErrLockNotAcquired
	}
	defer release()

	s.log.Info("processing order",
		zap.String("order_id", ev.OrderID),
		zap.String("order_type", string(ev.Kind)),
		zap.Int64("user_id", ev.UserID))

	switch ev.Kind {
	case model.TradeKindCancel:
		return s.processCancel(ctx, ev)
	case model.TradeKindBuy, model.TradeKindSell:
		return s.processTrade(ctx, ev)
	default:
		s.log.Error("unknown order type", zap.String("order_id", ev.OrderID), zap.String("order_type", string(ev.Kind)))
	}

	return nil
}

// processTrade runs the BUY/SELL paths with the idempotency guard: only a
// CREATED order is mutable, so replayed events for terminal orders no-op.
// An unreadable guard aborts before any mutation; assuming CREATED there
// would let a redelivery settle a terminal order twice.
func (s *Settler) processTrade(ctx context.Context, ev *model.OrderEvent) error {
	status, err := s.currentStatus(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("status guard for order %s: %w", ev.OrderID, err)
	}
	if status.Terminal() {
		s.log.Info("order already terminal, skipping duplicate event",
			zap.String("order_id", ev.OrderID), zap.String("status", string(status)))
		return nil
	}

	if ev.Kind == model.TradeKindBuy {
		err = s.handleBuy(ctx, ev)
	} else {
		err = s.handleSell(ctx, ev)
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrStockNotFound),
		errors.Is(err, ErrExceedingStockLimit):
		s.log.Warn("order failed business validation",
			zap.String("order_id", ev.OrderID), zap.String("reason", err.Error()))
		s.failOrder(ctx, ev, err.Error(), err.Error())
	default:
		s.log.Error("unexpected error processing order",
			zap.Error(err), zap.String("order_id", ev.OrderID), zap.Int64("user_id", ev.UserID))
		s.failOrder(ctx, ev, err.Error(), genericFailureMessage)
	}
	return nil
}

func (s *Settler) handleBuy(ctx context.Context, ev *model.OrderEvent) error {
	cancelled, err := s.isCancelled(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("cancel marker check for order %s: %w", ev.OrderID, err)
	}
	if cancelled {
		s.cancelOrder(ctx, ev)
		return nil
	}

	cached, err := s.cachedStock(ctx, ev.Ticker)
	if err != nil {
		return err
	}
	if cached < ev.Quantity {
		return ErrInsufficientStock
	}

	// Re-validate against the durable row: the stock cache is a soft
	// accelerator and may be stale.
	stock, err := s.stocks.FindByTicker(ctx, ev.Ticker)
	if err != nil {
		return err
	}
	if stock == nil {
		return fmt.Errorf("%w for ticker: %s", ErrStockNotFound, ev.Ticker)
	}
	if stock.Quantity < ev.Quantity {
		return ErrInsufficientStock
	}

	stock.Quantity -= ev.Quantity
	if err := s.saveStock(ctx, stock); err != nil {
		return err
	}
	if err := s.creditHolding(ctx, ev); err != nil {
		return err
	}

	s.completeOrder(ctx, ev, fmt.Sprintf("Order successful. %d stocks bought.", ev.Quantity))
	return nil
}

func (s *Settler) handleSell(ctx context.Context, ev *model.OrderEvent) error {
	cancelled, err := s.isCancelled(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("cancel marker check for order %s: %w", ev.OrderID, err)
	}
	if cancelled {
		s.cancelOrder(ctx, ev)
		return nil
	}

	holding, err := s.userStocks.FindByUserAndTicker(ctx, ev.UserID, ev.Ticker)
	if err != nil {
		return err
	}
	if holding == nil || holding.Quantity < ev.Quantity {
		return ErrInsufficientStock
	}

	cached, err := s.cachedStock(ctx, ev.Ticker)
	if err != nil {
		return err
	}
	if cached+ev.Quantity > s.cfg.SystemStockLimit {
		return ErrExceedingStockLimit
	}

	stock, err := s.stocks.FindByTicker(ctx, ev.Ticker)
	if err != nil {
		return err
	}
	if stock == nil {
		return fmt.Errorf("%w for ticker: %s", ErrStockNotFound, ev.Ticker)
	}
	if stock.Quantity+ev.Quantity > s.cfg.SystemStockLimit {
		return ErrExceedingStockLimit
	}

	stock.Quantity += ev.Quantity
	if err := s.saveStock(ctx, stock); err != nil {
		return err
	}
	if err := s.debitHolding(ctx, ev, holding); err != nil {
		return err
	}

	s.completeOrder(ctx, ev, fmt.Sprintf("Order successful. %d stocks sold.", ev.Quantity))
	return nil
}

// processCancel handles a CANCEL event under the lease. The cancellation
// marker itself was written by intake; when the order is not marked
// cancelled it must already be terminal, which cannot be undone.
func (s *Settler) processCancel(ctx context.Context, ev *model.OrderEvent) error {
	cancelled, err := s.isCancelled(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("cancel marker check for order %s: %w", ev.OrderID, err)
	}
	if cancelled {
		// The marker is in place and the buy/sell side will observe it.
		return nil
	}

	s.appendHistory(ctx, ev, "")
	s.notifier.NotifyUser(ev.UserID,
		fmt.Sprintf("Your order with ID %s has already been processed and cannot be cancelled.", ev.OrderID))
	return nil
}

// cancelOrder finalizes a buy/sell whose cancellation marker was observed:
// terminal CANCELLED, inventory untouched.
func (s *Settler) cancelOrder(ctx context.Context, ev *model.OrderEvent) {
	s.log.Warn("order was already cancelled", zap.String("order_id", ev.OrderID))
	s.persistOutcome(ctx, ev, model.OrderStatusCancelled, "")
	s.notifier.NotifyUser(ev.UserID,
		fmt.Sprintf("Your order with ID %s has been successfully cancelled.", ev.OrderID))
}

func (s *Settler) completeOrder(ctx context.Context, ev *model.OrderEvent, message string) {
	s.persistOutcome(ctx, ev, model.OrderStatusCompleted, "")
	s.notifier.NotifyUser(ev.UserID, message)
}

func (s *Settler) failOrder(ctx context.Context, ev *model.OrderEvent, reason, userMessage string) {
	s.persistOutcome(ctx, ev, model.OrderStatusFailed, reason)
	s.notifier.NotifyUser(ev.UserID, userMessage)
}

// persistOutcome writes the terminal order row, its audit entry and the
// cache view. Ledger first: the cache may briefly lag but never contradicts
// a ledger outcome for the same causal event.
func (s *Settler) persistOutcome(ctx context.Context, ev *model.OrderEvent, status model.OrderStatus, reason string) {
	now := time.Now()
	order := &model.Order{
		OrderID:   ev.OrderID,
		UserID:    ev.UserID,
		Ticker:    ev.Ticker,
		Kind:      ev.Kind,
		Quantity:  ev.Quantity,
		Status:    status,
		CreatedAt: ev.CreatedAt,
		UpdatedAt: now,
	}
	if _, err := s.orders.Upsert(ctx, order); err != nil {
		s.log.Error("failed to persist order", zap.Error(err), zap.String("order_id", ev.OrderID))
	}

	s.appendHistory(ctx, ev, reason)

	if err := s.orderCache.UpdateStatus(ctx, ev.OrderID, status, ev.Kind, reason); err != nil {
		s.log.Error("failed to update order cache", zap.Error(err), zap.String("order_id", ev.OrderID))
	}
}

func (s *Settler) appendHistory(ctx context.Context, ev *model.OrderEvent, reason string) {
	record := &model.OrderHistory{
		TransactionID: uuid.New().String(),
		OrderID:       ev.OrderID,
		UserID:        ev.UserID,
		Ticker:        ev.Ticker,
		Kind:          ev.Kind,
		Quantity:      ev.Quantity,
		Reason:        reason,
		CreatedAt:     time.Now(),
	}
	if _, err := s.histories.Create(ctx, record); err != nil {
		s.log.Error("failed to persist order history", zap.Error(err), zap.String("order_id", ev.OrderID))
	}
}

// cachedStock reads through the stock cache: a miss loads the durable row
// and refreshes the cache. A ticker with no durable row fails as not found.
func (s *Settler) cachedStock(ctx context.Context, ticker string) (int64, error) {
	qty, err := s.stockCache.Get(ctx, ticker)
	if err == nil {
		return qty, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return 0, err
	}

	stock, err := s.stocks.FindByTicker(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if stock == nil {
		return 0, fmt.Errorf("%w for ticker: %s", ErrStockNotFound, ticker)
	}
	if err := s.stockCache.Set(ctx, ticker, stock.Quantity); err != nil {
		s.log.Warn("failed to warm stock cache", zap.Error(err), zap.String("ticker", ticker))
	}
	return stock.Quantity, nil
}

// saveStock commits the durable mutation and refreshes the cache
// synchronously, keeping the store-behind-on-write policy.
func (s *Settler) saveStock(ctx context.Context, stock *model.Stock) error {
	stock.UpdatedAt = time.Now()
	if err := s.stocks.Save(ctx, stock); err != nil {
		return err
	}
	if err := s.stockCache.Set(ctx, stock.Ticker, stock.Quantity); err != nil {
		s.log.Error("failed to refresh stock cache after write",
			zap.Error(err), zap.String("ticker", stock.Ticker))
	}
	return nil
}

func (s *Settler) creditHolding(ctx context.Context, ev *model.OrderEvent) error {
	holding, err := s.userStocks.FindByUserAndTicker(ctx, ev.UserID, ev.Ticker)
	if err != nil {
		return err
	}
	now := time.Now()
	if holding == nil {
		holding = &model.UserStock{
			UserID:    ev.UserID,
			Ticker:    ev.Ticker,
			CreatedAt: now,
		}
		s.log.Info("creating holding record",
			zap.Int64("user_id", ev.UserID), zap.String("ticker", ev.Ticker))
	}
	holding.Quantity += ev.Quantity
	holding.UpdatedAt = now
	return s.userStocks.Save(ctx, holding)
}

func (s *Settler) debitHolding(ctx context.Context, ev *model.OrderEvent, holding *model.UserStock) error {
	newQuantity := holding.Quantity - ev.Quantity
	if newQuantity < 0 {
		// Validation happened before the lease was used to mutate; reaching
		// this means an invariant broke somewhere upstream.
		s.log.Error("holding would go negative, refusing to debit",
			zap.Int64("user_id", ev.UserID), zap.String("ticker", ev.Ticker),
			zap.Int64("held", holding.Quantity), zap.Int64("requested", ev.Quantity))
		return fmt.Errorf("selling quantity exceeds held quantity for user %d ticker %s", ev.UserID, ev.Ticker)
	}
	holding.Quantity = newQuantity
	holding.UpdatedAt = time.Now()
	return s.userStocks.Save(ctx, holding)
}

// isCancelled checks the cached record for a cancellation marker: status
// CANCELLED, or a CANCEL history entry on a still-CREATED order. A cache
// read error is returned, not swallowed: proceeding past an unreadable
// marker could settle an order the user already cancelled.
func (s *Settler) isCancelled(ctx context.Context, orderID string) (bool, error) {
	record, err := s.orderCache.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return false, nil
		}
		s.log.Warn("failed to read order cache for cancel check",
			zap.Error(err), zap.String("order_id", orderID))
		return false, err
	}
	return record.Cancelled(), nil
}

// currentStatus prefers the cache and falls back to the ledger. An order
// with no record anywhere is treated as CREATED: the intent may have been
// produced by an intake whose cache entry was lost. A ledger read error is
// returned so the event is retried instead of re-settled as CREATED.
func (s *Settler) currentStatus(ctx context.Context, orderID string) (model.OrderStatus, error) {
	record, err := s.orderCache.Get(ctx, orderID)
	if err == nil {
		return record.Status, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("failed to read order cache for status guard",
			zap.Error(err), zap.String("order_id", orderID))
	}

	order, err := s.orders.FindByIDWithHistories(ctx, orderID)
	if err != nil {
		s.log.Warn("failed to read ledger for status guard",
			zap.Error(err), zap.String("order_id", orderID))
		return "", err
	}
	if order == nil {
		return model.OrderStatusCreated, nil
	}
	return order.Status, nil
}
