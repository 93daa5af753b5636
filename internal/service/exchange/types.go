package exchange

import "strconv"

// MarketId 合约中的市场编号
type MarketId uint64

func (id MarketId) ToString() string {
	return strconv.FormatUint(uint64(id), 10)
}

// OrderId 合约返回的订单编号 (u128, 以字符串传输)
type OrderId string

func (id OrderId) IsZero() bool {
	return id == ""
}

func (id OrderId) ToString() string {
	return string(id)
}

type Side string

const (
	SideAsk Side = "ask"
	SideBid Side = "bid"
)

func (s Side) IsValid() bool {
	return s == SideAsk || s == SideBid
}

// Opposite 对手方
func (s Side) Opposite() Side {
	switch s {
	case SideAsk:
		return SideBid
	case SideBid:
		return SideAsk
	default:
		return ""
	}
}

type Service interface {
	MarketService() MarketService
	AccountService() AccountService
	OrderService() OrderService
	PositionService() PositionService
}

// Services 组合四个子服务, 各实现可直接复用
type Services struct {
	Market   MarketService
	Account  AccountService
	Order    OrderService
	Position PositionService
}

var _ Service = Services{}

func (s Services) MarketService() MarketService {
	return s.Market
}

func (s Services) AccountService() AccountService {
	return s.Account
}

func (s Services) OrderService() OrderService {
	return s.Order
}

func (s Services) PositionService() PositionService {
	return s.Position
}
