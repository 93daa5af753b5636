package entity

import (
	"time"
)

// AccountSnapshot 账户概览快照
type AccountSnapshot struct {
	Id          int64  `gorm:"primaryKey;autoIncrement"`
	AccountId   string `gorm:"index"`
	Token       string
	Balance     float64
	MarginRatio float64
	Equity      float64
	Upnl        float64
	CreatedAt   time.Time `gorm:"index"`
}
