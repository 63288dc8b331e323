package repo

import (
	"context"

	"github.com/joripage/brokerage-api/pkg/settlement/model"
	"gorm.io/gorm"
)

type OrderHistorySQLRepo struct {
	db *gorm.DB
}

func NewOrderHistorySQLRepo(db *gorm.DB) *OrderHistorySQLRepo {
	return &OrderHistorySQLRepo{
		db: db,
	}
}

func (s *OrderHistorySQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *OrderHistorySQLRepo) Create(ctx context.Context, record *model.OrderHistory) (*model.OrderHistory, error) {
	return record, s.dbWithContext(ctx).Create(record).Error
}
