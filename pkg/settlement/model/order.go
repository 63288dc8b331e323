package model

import (
	"time"
)

type OrderStatus string

const (
	// OrderStatusCreated is the only mutable state; every other status is terminal.
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// Terminal reports whether s admits no further transition.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusFailed
}

type TradeKind string

const (
	TradeKindBuy    TradeKind = "BUY"
	TradeKindSell   TradeKind = "SELL"
	TradeKindCancel TradeKind = "CANCEL"
)

// Order is the durable record of a trade intent and its settlement outcome.
type Order struct {
	OrderID   string      `gorm:"column:order_id;primaryKey"`
	UserID    int64       `gorm:"column:user_id"`
	Ticker    string      `gorm:"column:ticker"`
	Kind      TradeKind   `gorm:"column:order_type"`
	Quantity  int64       `gorm:"column:quantity"`
	Status    OrderStatus `gorm:"column:status"`
	CreatedAt time.Time   `gorm:"column:created_at"`
	UpdatedAt time.Time   `gorm:"column:updated_at"`

	Histories []*OrderHistory `gorm:"foreignKey:OrderID;references:OrderID"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderHistory is one append-only audit entry for an order. Reason is set
// only on failure and cancellation paths.
type OrderHistory struct {
	TransactionID string    `gorm:"column:transaction_id;primaryKey"`
	OrderID       string    `gorm:"column:order_id"`
	UserID        int64     `gorm:"column:user_id"`
	Ticker        string    `gorm:"column:ticker"`
	Kind          TradeKind `gorm:"column:order_type"`
	Quantity      int64     `gorm:"column:quantity"`
	Reason        string    `gorm:"column:reason"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (OrderHistory) TableName() string {
	return "order_history"
}
