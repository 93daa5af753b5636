package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KNICEX/spin-perp/pkg/decimalx"
)

var (
	ErrInvalidOrder   = errors.New("invalid order")
	ErrOrderNotFound  = errors.New("order not found")
	ErrMarketNotFound = errors.New("market not found")
	// ErrReadOnly 交易所只能查询, 不能下单撤单
	ErrReadOnly = errors.New("exchange is read only")
)

type Order struct {
	Id                OrderId
	MarketId          MarketId
	Side              Side
	Price             string // 放大 10^24
	Quantity          string // 放大 10^24
	RemainingQuantity string
	ClientOrderId     uint32
	PostOnly          bool
	CreatedAt         time.Time
}

type GetOrdersReq struct {
	MarketId  MarketId
	AccountId string
}

// PlaceOrderReq 下单请求, Price 和 Quantity 为 decimalx.ToScaledString 得到的整数字符串
type PlaceOrderReq struct {
	MarketId      MarketId
	Side          Side
	Price         string // 市价单可为空
	Quantity      string
	MarketOrder   bool
	PostOnly      bool
	ClientOrderId uint32
}

func (req PlaceOrderReq) Validate() error {
	if !req.Side.IsValid() {
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, req.Side)
	}
	qty, err := decimalx.ToDecimal(req.Quantity)
	if err != nil {
		return fmt.Errorf("%w: quantity: %w", ErrInvalidOrder, err)
	}
	if !qty.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if req.MarketOrder && req.PostOnly {
		return fmt.Errorf("%w: market order cannot be post only", ErrInvalidOrder)
	}

	if req.Price == "" {
		if !req.MarketOrder {
			return fmt.Errorf("%w: limit order without price", ErrInvalidOrder)
		}
		return nil
	}
	price, err := decimalx.ToDecimal(req.Price)
	if err != nil {
		return fmt.Errorf("%w: price: %w", ErrInvalidOrder, err)
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: negative price", ErrInvalidOrder)
	}
	if !req.MarketOrder && price.IsZero() {
		return fmt.Errorf("%w: limit order without price", ErrInvalidOrder)
	}
	return nil
}

type CancelOrderReq struct {
	MarketId MarketId
	OrderId  OrderId
}

type OrderService interface {
	GetOrders(ctx context.Context, req GetOrdersReq) ([]Order, error)
	PlaceOrder(ctx context.Context, req PlaceOrderReq) (OrderId, error)
	CancelOrder(ctx context.Context, req CancelOrderReq) error
}
