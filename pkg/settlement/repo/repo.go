package repo

import (
	"gorm.io/gorm"
)

type IRepo interface {
	Order() IOrder
	OrderHistory() IOrderHistory
	Stock() IStock
	UserStock() IUserStock
}

type Repo struct {
	brokerageDB *gorm.DB
}

func NewRepo(brokerageDB *gorm.DB) IRepo {
	return &Repo{
		brokerageDB: brokerageDB,
	}
}

func (r *Repo) Order() IOrder {
	return NewOrderSQLRepo(r.brokerageDB)
}

func (r *Repo) OrderHistory() IOrderHistory {
	return NewOrderHistorySQLRepo(r.brokerageDB)
}

func (r *Repo) Stock() IStock {
	return NewStockSQLRepo(r.brokerageDB)
}

func (r *Repo) UserStock() IUserStock {
	return NewUserStockSQLRepo(r.brokerageDB)
}
