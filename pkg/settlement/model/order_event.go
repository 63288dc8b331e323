package model

import "time"

// OrderEvent is the message form of a trade intent carried over Kafka.
// Delivery is at-least-once; consumers must treat duplicates as no-ops.
type OrderEvent struct {
	OrderID   string    `json:"order_id"`
	UserID    int64     `json:"user_id"`
	Ticker    string    `json:"ticker"`
	Kind      TradeKind `json:"order_type"`
	Quantity  int64     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

func NewOrderEventBuy(orderID string, userID int64, ticker string, qty int64, ts time.Time) *OrderEvent {
	return &OrderEvent{
		OrderID:   orderID,
		UserID:    userID,
		Ticker:    ticker,
		Kind:      TradeKindBuy,
		Quantity:  qty,
		CreatedAt: ts,
	}
}

func NewOrderEventSell(orderID string, userID int64, ticker string, qty int64, ts time.Time) *OrderEvent {
	return &OrderEvent{
		OrderID:   orderID,
		UserID:    userID,
		Ticker:    ticker,
		Kind:      TradeKindSell,
		Quantity:  qty,
		CreatedAt: ts,
	}
}

// NewOrderEventCancel carries no quantity; the order id references the
// buy/sell intent being suppressed.
func NewOrderEventCancel(orderID string, userID int64, ticker string, ts time.Time) *OrderEvent {
	return &OrderEvent{
		OrderID:   orderID,
		UserID:    userID,
		Ticker:    ticker,
		Kind:      TradeKindCancel,
		CreatedAt: ts,
	}
}
