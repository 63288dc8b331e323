package repo

import (
	"context"

	"github.com/joripage/brokerage-api/pkg/settlement/model"
)

type IOrder interface {
	Upsert(ctx context.Context, record *model.Order) (*model.Order, error)
	FindByIDWithHistories(ctx context.Context, orderID string) (*model.Order, error)
	FindByUser(ctx context.Context, userID int64, page, size int) ([]*model.Order, error)
}

type IOrderHistory interface {
	Create(ctx context.Context, record *model.OrderHistory) (*model.OrderHistory, error)
}

type IStock interface {
	FindByTicker(ctx context.Context, ticker string) (*model.Stock, error)
	Save(ctx context.Context, record *model.Stock) error
}

type IUserStock interface {
	FindByUserAndTicker(ctx context.Context, userID int64, ticker string) (*model.UserStock, error)
	Save(ctx context.Context, record *model.UserStock) error
}
