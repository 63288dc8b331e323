// Package notify delivers best-effort, human-readable messages to users.
// Delivery failures are logged and never influence order state.
package notify

import (
	"context"
	"strconv"
	"time"

	kafkawrapper "github.com/joripage/brokerage-api/pkg/kafka_wrapper"
	"github.com/joripage/go_util/pkg/shardqueue"
	"go.uber.org/zap"
)

const (
	numShards   = 16
	queueSize   = 100_000
	sendTimeout = 5 * time.Second
	NotifyTopic = "user-notifications"
)

type notification struct {
	userID  int64
	message string
}

// Notifier fans user notifications out through a shard queue keyed by user
// id, so sends never block the settlement path and stay ordered per user.
type Notifier struct {
	producer *kafkawrapper.Producer
	queue    *shardqueue.Shardqueue
	log      *zap.Logger
}

func NewNotifier(producer *kafkawrapper.Producer, log *zap.Logger) *Notifier {
	n := &Notifier{
		producer: producer,
		log:      log,
	}

	n.queue = shardqueue.NewShardQueue(numShards, queueSize)
	n.queue.Start(func(msg interface{}) error {
		if v, ok := msg.(*notification); ok {
			n.send(v)
		}
		return nil
	})

	return n
}

// NotifyUser enqueues message for userID and returns immediately.
func (n *Notifier) NotifyUser(userID int64, message string) {
	n.queue.Shard(strconv.FormatInt(userID, 10), &notification{
		userID:  userID,
		message: message,
	})
}

func (n *Notifier) send(v *notification) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	key := strconv.FormatInt(v.userID, 10)
	if err := n.producer.Publish(ctx, NotifyTopic, []byte(key), []byte(v.message), nil); err != nil {
		n.log.Error("failed to send notification",
			zap.Error(err), zap.Int64("user_id", v.userID), zap.String("message", v.message))
		return
	}
	n.log.Info("notification sent", zap.Int64("user_id", v.userID), zap.String("message", v.message))
}
