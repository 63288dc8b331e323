package cache

import (
	"encoding/json"
	"time"

	"github.com/joripage/brokerage-api/pkg/settlement/model"
)

// OrderRecord is the cached view of an order. It is serialized through this
// one schema only; the cache never stores loose key/value bags.
type OrderRecord struct {
	OrderID   string            `json:"order_id"`
	UserID    int64             `json:"user_id"`
	Ticker    string            `json:"ticker"`
	Kind      model.TradeKind   `json:"order_type"`
	Quantity  int64             `json:"quantity"`
	Status    model.OrderStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	History   []HistoryEntry    `json:"history"`
}

// HistoryEntry mirrors one processing attempt. Order of entries is causal
// processing order, not wall-clock arrival order of duplicates.
type HistoryEntry struct {
	Kind      model.TradeKind `json:"order_type"`
	Timestamp time.Time       `json:"timestamp"`
	Reason    string          `json:"reason,omitempty"`
}

// NewOrderRecord builds the CREATED intent record written by intake.
func NewOrderRecord(ev *model.OrderEvent, ts time.Time) *OrderRecord {
	return &OrderRecord{
		OrderID:   ev.OrderID,
		UserID:    ev.UserID,
		Ticker:    ev.Ticker,
		Kind:      ev.Kind,
		Quantity:  ev.Quantity,
		Status:    model.OrderStatusCreated,
		CreatedAt: ev.CreatedAt,
		UpdatedAt: ev.CreatedAt,
		History: []HistoryEntry{
			{Kind: ev.Kind, Timestamp: ts},
		},
	}
}

// AppendHistory records one more processing attempt on the record.
func (r *OrderRecord) AppendHistory(kind model.TradeKind, reason string, ts time.Time) {
	r.History = append(r.History, HistoryEntry{Kind: kind, Timestamp: ts, Reason: reason})
	r.UpdatedAt = ts
}

// Cancelled reports whether the order carries a cancellation marker: either
// a terminal CANCELLED status, or a CANCEL history entry observed while the
// order is still CREATED (the cancel event was processed first).
func (r *OrderRecord) Cancelled() bool {
	if r.Status == model.OrderStatusCancelled {
		return true
	}
	if r.Status != model.OrderStatusCreated {
		return false
	}
	for _, h := range r.History {
		if h.Kind == model.TradeKindCancel {
			return true
		}
	}
	return false
}

func (r *OrderRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func UnmarshalOrderRecord(data []byte) (*OrderRecord, error) {
	var record OrderRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
