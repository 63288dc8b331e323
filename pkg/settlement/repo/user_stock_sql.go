package repo

import (
	"context"
	"errors"

	"github.com/joripage/brokerage-api/pkg/settlement/model"
	"gorm.io/gorm"
)

type UserStockSQLRepo struct {
	db *gorm.DB
}

func NewUserStockSQLRepo(db *gorm.DB) *UserStockSQLRepo {
	return &UserStockSQLRepo{
		db: db,
	}
}

func (s *UserStockSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// FindByUserAndTicker returns (nil, nil) when the user holds none of ticker.
func (s *UserStockSQLRepo) FindByUserAndTicker(ctx context.Context, userID int64, ticker string) (*model.UserStock, error) {
	var record model.UserStock
	err := s.dbWithContext(ctx).
		Where("user_id = ? AND ticker = ?", userID, ticker).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *UserStockSQLRepo) Save(ctx context.Context, record *model.UserStock) error {
	return s.dbWithContext(ctx).Save(record).Error
}
