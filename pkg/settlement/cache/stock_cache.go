package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StockCache holds the per-ticker system stock counter. It is refreshed
// synchronously after every durable stock mutation; reads are a soft
// accelerator and the settler re-checks the durable row before mutating.
type StockCache struct {
	client redis.Cmdable
	log    *zap.Logger
}

func NewStockCache(client redis.Cmdable, log *zap.Logger) *StockCache {
	return &StockCache{
		client: client,
		log:    log,
	}
}

func stockKey(ticker string) string {
	return "stock:" + ticker
}

// Get returns ErrCacheMiss when the ticker has no cached quantity.
func (c *StockCache) Get(ctx context.Context, ticker string) (int64, error) {
	data, err := c.client.Get(ctx, stockKey(ticker)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		c.log.Error("failed to get stock from cache", zap.Error(err), zap.String("ticker", ticker))
		return 0, err
	}
	return strconv.ParseInt(data, 10, 64)
}

func (c *StockCache) Set(ctx context.Context, ticker string, quantity int64) error {
	if err := c.client.Set(ctx, stockKey(ticker), strconv.FormatInt(quantity, 10), 0).Err(); err != nil {
		c.log.Error("failed to set stock in cache", zap.Error(err), zap.String("ticker", ticker))
		return err
	}
	return nil
}
