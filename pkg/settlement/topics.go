package settlement

import "github.com/joripage/brokerage-api/pkg/settlement/model"

const (
	BuyOrdersTopic       = "buy_intent_orders"
	SellOrdersTopic      = "sell_intent_orders"
	CancelledOrdersTopic = "cancelled_intent_orders"

	StockActionConsumerGroup = "stock-action-handler-group"
	OrderEventsDLQTopic      = "intent_orders_dlq"
)

// OrderTopics are the topics the settlement consumer group subscribes to.
var OrderTopics = []string{BuyOrdersTopic, SellOrdersTopic, CancelledOrdersTopic}

func TopicForKind(kind model.TradeKind) string {
	switch kind {
	case model.TradeKindBuy:
		return BuyOrdersTopic
	case model.TradeKindSell:
		return SellOrdersTopic
	case model.TradeKindCancel:
		return CancelledOrdersTopic
	default:
		return ""
	}
}
