package repo

import (
	"context"
	"errors"

	"github.com/joripage/brokerage-api/pkg/settlement/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderSQLRepo struct {
	db *gorm.DB
}

func NewOrderSQLRepo(db *gorm.DB) *OrderSQLRepo {
	return &OrderSQLRepo{
		db: db,
	}
}

func (s *OrderSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Upsert writes the order keyed by order_id. The worker calls this once per
// settlement outcome, so a conflicting row only exists on event redelivery.
func (s *OrderSQLRepo) Upsert(ctx context.Context, record *model.Order) (*model.Order, error) {
	err := s.dbWithContext(ctx).
		Omit("Histories").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "quantity", "updated_at"}),
		}).
		Create(record).Error
	return record, err
}

func (s *OrderSQLRepo) FindByIDWithHistories(ctx context.Context, orderID string) (*model.Order, error) {
	var record model.Order
	err := s.dbWithContext(ctx).
		Preload("Histories").
		Where("order_id = ?", orderID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *OrderSQLRepo) FindByUser(ctx context.Context, userID int64, page, size int) ([]*model.Order, error) {
	var records []*model.Order
	err := s.dbWithContext(ctx).
		Preload("Histories").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(page * size).
		Limit(size).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
