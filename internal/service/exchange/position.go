package exchange

import "context"

type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

type Position struct {
	MarketId     MarketId
	Side         PositionSide
	BaseQuantity string // 持仓数量, 放大 10^24
	EntryPrice   string // 开仓均价, 放大 10^24
	Upnl         string // 未实现盈亏, 放大 10^24, 可为负
}

type Positions struct {
	MarginRatio string // 保证金率, 普通小数字符串
	Positions   []Position
}

type PositionService interface {
	GetPositions(ctx context.Context, accountId string) (Positions, error)
}
