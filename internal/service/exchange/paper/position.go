package paper

import (
	"context"
	"sort"

	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/KNICEX/spin-perp/pkg/decimalx"
	"github.com/shopspring/decimal"
)

// position 带符号的持仓, 多头为正
type position struct {
	quantity   decimal.Decimal
	entryPrice decimal.Decimal
}

// fillLocked 以 price 成交 qty, 减仓部分的已实现盈亏计入余额
func (e *Exchange) fillLocked(id exchange.MarketId, account string, side exchange.Side, price, qty decimal.Decimal) {
	positions, ok := e.positions[account]
	if !ok {
		positions = make(map[exchange.MarketId]*position)
		e.positions[account] = positions
	}
	pos, ok := positions[id]
	if !ok {
		pos = &position{}
		positions[id] = pos
	}

	delta := qty
	if side == exchange.SideAsk {
		delta = qty.Neg()
	}

	switch {
	case pos.quantity.IsZero() || pos.quantity.Sign() == delta.Sign():
		// 开仓或加仓, 更新均价
		newQty := pos.quantity.Add(delta)
		pos.entryPrice = pos.entryPrice.Mul(pos.quantity.Abs()).
			Add(price.Mul(delta.Abs())).
			Div(newQty.Abs())
		pos.quantity = newQty
	default:
		closed := decimal.Min(pos.quantity.Abs(), delta.Abs())
		pnl := price.Sub(pos.entryPrice).Mul(closed)
		if pos.quantity.IsNegative() {
			pnl = pnl.Neg()
		}
		e.balances[account] = e.balances[account].Add(pnl)

		newQty := pos.quantity.Add(delta)
		switch {
		case newQty.IsZero():
			pos.entryPrice = decimal.Zero
		case newQty.Sign() != pos.quantity.Sign():
			// 反手
			pos.entryPrice = price
		}
		pos.quantity = newQty
	}

	if pos.quantity.IsZero() {
		delete(positions, id)
	}
}

// markPriceLocked 盘口中间价, 单边时取最近成交价
func (e *Exchange) markPriceLocked(id exchange.MarketId) (decimal.Decimal, bool) {
	if b, ok := e.books[id]; ok && len(b.asks) > 0 && len(b.bids) > 0 {
		return b.asks[0].price.Add(b.bids[0].price).Div(decimal.NewFromInt(2)), true
	}
	p, ok := e.lastPrices[id]
	return p, ok
}

// GetPositions margin ratio 定义为 权益 / 持仓名义价值, 无持仓时为 0
func (e *Exchange) GetPositions(ctx context.Context, accountId string) (exchange.Positions, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]exchange.MarketId, 0, len(e.positions[accountId]))
	for id := range e.positions[accountId] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	res := exchange.Positions{MarginRatio: "0"}
	totalUpnl, notional := decimal.Zero, decimal.Zero
	for _, id := range ids {
		pos := e.positions[accountId][id]
		mark, ok := e.markPriceLocked(id)
		if !ok {
			mark = pos.entryPrice
		}
		upnl := mark.Sub(pos.entryPrice).Mul(pos.quantity)
		totalUpnl = totalUpnl.Add(upnl)
		notional = notional.Add(mark.Mul(pos.quantity.Abs()))

		side := exchange.PositionSideLong
		if pos.quantity.IsNegative() {
			side = exchange.PositionSideShort
		}
		res.Positions = append(res.Positions, exchange.Position{
			MarketId:     id,
			Side:         side,
			BaseQuantity: scaled(pos.quantity.Abs()),
			EntryPrice:   scaled(pos.entryPrice),
			Upnl:         scaled(upnl),
		})
	}

	if notional.IsPositive() {
		equity := e.balances[accountId].Add(totalUpnl)
		res.MarginRatio = equity.Div(notional).StringFixed(4)
	}
	return res, nil
}

// scaled 默认精度下 FromDecimal 不会出错
func scaled(d decimal.Decimal) string {
	s, _ := decimalx.FromDecimal(d)
	return s
}
