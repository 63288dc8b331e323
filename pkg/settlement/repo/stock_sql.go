package repo

import (
	"context"
	"errors"

	"github.com/joripage/brokerage-api/pkg/settlement/model"
	"gorm.io/gorm"
)

type StockSQLRepo struct {
	db *gorm.DB
}

func NewStockSQLRepo(db *gorm.DB) *StockSQLRepo {
	return &StockSQLRepo{
		db: db,
	}
}

func (s *StockSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// FindByTicker returns (nil, nil) when no inventory row exists for ticker.
func (s *StockSQLRepo) FindByTicker(ctx context.Context, ticker string) (*model.Stock, error) {
	var record model.Stock
	err := s.dbWithContext(ctx).Where("ticker = ?", ticker).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *StockSQLRepo) Save(ctx context.Context, record *model.Stock) error {
	return s.dbWithContext(ctx).Save(record).Error
}
