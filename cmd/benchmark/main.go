package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	kafkawrapper "github.com/joripage/brokerage-api/pkg/kafka_wrapper"
	"github.com/joripage/brokerage-api/pkg/settlement"
	"github.com/joripage/brokerage-api/pkg/settlement/cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	numOrders = 100_000
	numUsers  = 1_000
	workers   = 16
	minQty    = 1
	maxQty    = 100
)

var tickers = []string{"AAPL", "MSFT", "GOOG", "AMZN", "TSLA"}

func main() {
	logger := zap.NewNop()

	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	producer := kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{
		Brokers: []string{"localhost:9092"},
	})
	intake := settlement.NewIntake(cache.NewOrderCache(rdb, logger), producer, logger)

	ctx := context.Background()
	var accepted, rejected atomic.Int64

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < numOrders/workers; i++ {
				req := &settlement.TradeRequest{
					UserID:   rng.Int63n(numUsers) + 1,
					Ticker:   tickers[rng.Intn(len(tickers))],
					Quantity: int64(rng.Intn(maxQty-minQty+1) + minQty),
				}
				var err error
				if rng.Intn(2) == 0 {
					_, err = intake.SubmitBuy(ctx, req)
				} else {
					_, err = intake.SubmitSell(ctx, req)
				}
				if err != nil {
					rejected.Add(1)
				} else {
					accepted.Add(1)
				}
			}
		}(int64(w) + time.Now().UnixNano())
	}
	wg.Wait()

	elapsed := time.Since(start)
	_ = producer.Close(ctx)

	fmt.Println("--------")
	fmt.Printf("🏁 Total Orders : %d\n", numOrders)
	fmt.Printf("✅ Accepted     : %d\n", accepted.Load())
	fmt.Printf("❌ Rejected     : %d\n", rejected.Load())
	fmt.Printf("⏱️ Time Taken   : %s (%.0f orders/s)\n", elapsed, float64(numOrders)/elapsed.Seconds())
}
