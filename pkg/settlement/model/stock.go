package model

import "time"

// Stock is the system-wide inventory counter for one ticker.
type Stock struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Ticker    string    `gorm:"column:ticker;uniqueIndex"`
	Quantity  int64     `gorm:"column:quantity"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Stock) TableName() string {
	return "stocks"
}

// UserStock is one user's holding of one ticker. Created lazily on first buy.
type UserStock struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64     `gorm:"column:user_id"`
	Ticker    string    `gorm:"column:ticker"`
	Quantity  int64     `gorm:"column:quantity"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (UserStock) TableName() string {
	return "user_stock"
}
