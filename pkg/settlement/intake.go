package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joripage/brokerage-api/pkg/settlement/model"
	"go.uber.org/zap"
)

// TradeRequest is a validated trade intent from the API layer. OrderID is
// optional for buy/sell and mandatory for cancel, where it references the
// order being suppressed.
type TradeRequest struct {
	OrderID  string
	UserID   int64
	Ticker   string
	Quantity int64
}

// Intake accepts trade requests and hands them off to asynchronous
// settlement. The cache write happens before the publish so a crash in
// between never leaves an accepted order without any record.
type Intake struct {
	orderCache OrderCache
	publisher  Publisher
	log        *zap.Logger
}

func NewIntake(orderCache OrderCache, publisher Publisher, log *zap.Logger) *Intake {
	return &Intake{
		orderCache: orderCache,
		publisher:  publisher,
		log:        log,
	}
}

func (s *Intake) SubmitBuy(ctx context.Context, req *TradeRequest) (string, error) {
	if req.Quantity <= 0 {
		return "", ErrInvalidQuantity
	}
	ev := model.NewOrderEventBuy(s.orderID(req), req.UserID, req.Ticker, req.Quantity, time.Now())
	return s.submit(ctx, ev)
}

func (s *Intake) SubmitSell(ctx context.Context, req *TradeRequest) (string, error) {
	if req.Quantity <= 0 {
		return "", ErrInvalidQuantity
	}
	ev := model.NewOrderEventSell(s.orderID(req), req.UserID, req.Ticker, req.Quantity, time.Now())
	return s.submit(ctx, ev)
}

func (s *Intake) SubmitCancel(ctx context.Context, req *TradeRequest) (string, error) {
	if req.OrderID == "" {
		return "", ErrOrderIDRequired
	}
	ev := model.NewOrderEventCancel(req.OrderID, req.UserID, req.Ticker, time.Now())
	return s.submit(ctx, ev)
}

// submit write-aheads the intent to the order cache, then publishes the
// event. Either step failing compensates by deleting the cache entry and
// surfaces a retryable error: the caller must not assume the order exists.
func (s *Intake) submit(ctx context.Context, ev *model.OrderEvent) (string, error) {
	s.log.Info("processing trade intent",
		zap.String("order_id", ev.OrderID), zap.String("order_type", string(ev.Kind)))

	if err := s.orderCache.CacheIntent(ctx, ev); err != nil {
		s.log.Error("failed to cache trade intent", zap.Error(err), zap.String("order_id", ev.OrderID))
		s.compensate(ctx, ev)
		return "", fmt.Errorf("%w: %v", ErrIntakeFailed, err)
	}

	topic := TopicForKind(ev.Kind)
	if err := s.publisher.PublishJSON(ctx, topic, ev.OrderID, ev, nil); err != nil {
		s.log.Error("failed to publish order event",
			zap.Error(err), zap.String("order_id", ev.OrderID), zap.String("topic", topic))
		s.compensate(ctx, ev)
		return "", fmt.Errorf("%w: %v", ErrIntakeFailed, err)
	}

	return ev.OrderID, nil
}

// compensate is best-effort: a leftover entry only costs an extra ledger
// read later, while surfacing a delete failure would mask the real cause.
func (s *Intake) compensate(ctx context.Context, ev *model.OrderEvent) {
	if err := s.orderCache.Remove(ctx, ev.OrderID, ev.UserID); err != nil {
		s.log.Warn("failed to compensate cached intent", zap.Error(err), zap.String("order_id", ev.OrderID))
	}
}

func (s *Intake) orderID(req *TradeRequest) string {
	if req.OrderID != "" {
		return req.OrderID
	}
	return uuid.New().String()
}
