package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafkawrapper "github.com/joripage/brokerage-api/pkg/kafka_wrapper"
	"github.com/joripage/brokerage-api/pkg/settlement/model"
	"go.uber.org/zap"
)

// Consumer is the transport-facing entry point: it decodes order events off
// the order topics and feeds them to the settler.
type Consumer struct {
	settler *Settler
	log     *zap.Logger
}

func NewConsumer(settler *Settler, log *zap.Logger) *Consumer {
	return &Consumer{
		settler: settler,
		log:     log,
	}
}

// HandleMessage is invoked by the consumer group for every fetched message.
// A nil return acknowledges the event. Lease contention maps to
// ErrSkipCommit so the broker redelivers instead of the local retry loop.
func (c *Consumer) HandleMessage(ctx context.Context, msg kafkawrapper.Message) error {
	var ev model.OrderEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("failed to decode order event",
			zap.Error(err), zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset))
		return fmt.Errorf("decode order event: %w", err)
	}
	if ev.Kind == "" {
		return fmt.Errorf("order type missing for order %s", ev.OrderID)
	}

	err := c.settler.Process(ctx, &ev)
	if errors.Is(err, ErrLockNotAcquired) {
		return kafkawrapper.ErrSkipCommit
	}
	return err
}
