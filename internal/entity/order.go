package entity

import (
	"time"
)

// OrderRecord 下单/撤单流水, 价格数量保存合约原始整数字符串
type OrderRecord struct {
	Id            int64  `gorm:"primaryKey;autoIncrement"`
	AccountId     string `gorm:"index"`
	MarketId      uint64 `gorm:"index"`
	OrderId       string `gorm:"uniqueIndex:order_idx"`
	Exchange      string `gorm:"uniqueIndex:order_idx"` // spin / paper
	Side          string
	Price         string
	Quantity      string
	ClientOrderId uint32
	Status        string    `gorm:"index"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

const (
	OrderStatusPlaced    = "placed"
	OrderStatusCancelled = "cancelled"
)
