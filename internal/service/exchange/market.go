package exchange

import (
	"context"
	"time"

	"github.com/KNICEX/spin-perp/pkg/decimalx"
)

// Currency 合约登记的代币
type Currency struct {
	Symbol   string
	Address  string
	Decimals int32
}

// MarketLimits 下单限制, 均为放大 10^24 的整数字符串
type MarketLimits struct {
	TickSize         string
	StepSize         string
	MinBaseQuantity  string
	MaxBaseQuantity  string
	MinQuoteQuantity string
	MaxQuoteQuantity string
}

type Market struct {
	Id            MarketId
	Symbol        string
	BaseCurrency  Currency
	QuoteCurrency Currency
	Limits        MarketLimits
}

// TickSizeNumber 最小价格变动
func (m Market) TickSizeNumber() (float64, error) {
	return decimalx.ToNumber(m.Limits.TickSize)
}

type BookLevel struct {
	Price    string
	Quantity string
}

type Orderbook struct {
	MarketId  MarketId
	AskOrders []BookLevel // 价格升序
	BidOrders []BookLevel // 价格降序
}

// L1 最优买卖价, 某一侧为空时返回 nil
func (ob Orderbook) L1() (ask, bid *BookLevel) {
	if len(ob.AskOrders) > 0 {
		a := ob.AskOrders[0]
		ask = &a
	}
	if len(ob.BidOrders) > 0 {
		b := ob.BidOrders[0]
		bid = &b
	}
	return ask, bid
}

// BookL1 一档行情推送
type BookL1 struct {
	MarketId  MarketId
	Ask       *BookLevel
	Bid       *BookLevel
	Timestamp time.Time
}

type GetOrderbookReq struct {
	MarketId MarketId
	Limit    int // <= 0 表示不限制
}

type MarketService interface {
	GetMarket(ctx context.Context, id MarketId) (Market, error)
	GetMarkets(ctx context.Context) ([]Market, error)
	GetOrderbook(ctx context.Context, req GetOrderbookReq) (Orderbook, error)
	// SubscribeBookL1 订阅一档行情, ctx 结束后 channel 关闭
	SubscribeBookL1(ctx context.Context, id MarketId) (<-chan BookL1, error)
}
