package cache

import (
	"testing"
	"time"

	"github.com/joripage/brokerage-api/pkg/settlement/model"
)

func TestNewOrderRecordStartsCreated(t *testing.T) {
	now := time.Now()
	ev := model.NewOrderEventBuy("r-1", 7, "AAPL", 30, now)

	record := NewOrderRecord(ev, now)
	if record.Status != model.OrderStatusCreated {
		t.Errorf("status = %s, want CREATED", record.Status)
	}
	if len(record.History) != 1 || record.History[0].Kind != model.TradeKindBuy {
		t.Errorf("history = %+v", record.History)
	}
}

func TestOrderRecordRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	ev := model.NewOrderEventSell("r-2", 7, "AAPL", 15, now)
	record := NewOrderRecord(ev, now)
	record.AppendHistory(model.TradeKindSell, "insufficient stock", now.Add(time.Second))

	data, err := record.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := UnmarshalOrderRecord(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.OrderID != "r-2" || decoded.Kind != model.TradeKindSell || decoded.Quantity != 15 {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.History) != 2 || decoded.History[1].Reason != "insufficient stock" {
		t.Errorf("decoded history = %+v", decoded.History)
	}
}

func TestCancelledDetection(t *testing.T) {
	now := time.Now()

	fresh := NewOrderRecord(model.NewOrderEventBuy("r-3", 7, "AAPL", 10, now), now)
	if fresh.Cancelled() {
		t.Error("fresh buy record must not read as cancelled")
	}

	marked := NewOrderRecord(model.NewOrderEventBuy("r-4", 7, "AAPL", 10, now), now)
	marked.AppendHistory(model.TradeKindCancel, "", now)
	if !marked.Cancelled() {
		t.Error("CREATED record with cancel entry must read as cancelled")
	}

	terminal := NewOrderRecord(model.NewOrderEventBuy("r-5", 7, "AAPL", 10, now), now)
	terminal.Status = model.OrderStatusCancelled
	if !terminal.Cancelled() {
		t.Error("CANCELLED status must read as cancelled")
	}

	completed := NewOrderRecord(model.NewOrderEventBuy("r-6", 7, "AAPL", 10, now), now)
	completed.Status = model.OrderStatusCompleted
	completed.AppendHistory(model.TradeKindCancel, "", now)
	if completed.Cancelled() {
		t.Error("COMPLETED record must not read as cancelled even with a late cancel entry")
	}
}
