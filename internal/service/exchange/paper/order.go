package paper

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/KNICEX/spin-perp/internal/metrics"
	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/KNICEX/spin-perp/pkg/decimalx"
	"github.com/shopspring/decimal"
)

func (e *Exchange) GetOrders(ctx context.Context, req exchange.GetOrdersReq) ([]exchange.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, ok := e.books[req.MarketId]
	if !ok {
		return nil, fmt.Errorf("%w: %d", exchange.ErrMarketNotFound, req.MarketId)
	}

	var orders []exchange.Order
	for _, o := range append(append([]*restingOrder{}, b.asks...), b.bids...) {
		if o.owner != req.AccountId {
			continue
		}
		order := o.order
		order.RemainingQuantity = scaled(o.remaining)
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		a, _ := strconv.ParseUint(orders[i].Id.ToString(), 10, 64)
		b, _ := strconv.ParseUint(orders[j].Id.ToString(), 10, 64)
		return a < b
	})
	return orders, nil
}

// PlaceOrder 以 accountId 身份下单
func (e *Exchange) PlaceOrder(ctx context.Context, req exchange.PlaceOrderReq) (exchange.OrderId, error) {
	id, err := e.place(e.accountId, req)
	if err != nil {
		return "", err
	}
	metrics.OrdersPlacedTotal.WithLabelValues(req.MarketId.ToString(), string(req.Side)).Inc()
	return id, nil
}

// AddLiquidity 以 MakerAccount 身份挂 post only 限价单, price / quantity 为真实单位
func (e *Exchange) AddLiquidity(id exchange.MarketId, side exchange.Side, price, quantity decimal.Decimal) (exchange.OrderId, error) {
	p, err := decimalx.FromDecimal(price)
	if err != nil {
		return "", err
	}
	q, err := decimalx.FromDecimal(quantity)
	if err != nil {
		return "", err
	}
	return e.place(MakerAccount, exchange.PlaceOrderReq{
		MarketId: id,
		Side:     side,
		Price:    p,
		Quantity: q,
		PostOnly: true,
	})
}

func (e *Exchange) place(owner string, req exchange.PlaceOrderReq) (exchange.OrderId, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	qty, err := decimalx.ToDecimal(req.Quantity)
	if err != nil {
		return "", err
	}
	price := decimal.Zero
	if req.Price != "" {
		if price, err = decimalx.ToDecimal(req.Price); err != nil {
			return "", err
		}
	}

	e.mu.Lock()
	market, ok := e.markets[req.MarketId]
	if !ok {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: %d", exchange.ErrMarketNotFound, req.MarketId)
	}
	if err = checkLimits(market.Limits, price, qty, req.MarketOrder); err != nil {
		e.mu.Unlock()
		return "", err
	}

	b := e.books[req.MarketId]
	opposite := req.Side.Opposite()
	if req.PostOnly {
		resting := b.side(opposite)
		if len(resting) > 0 && crosses(req.Side, price, false, resting[0]) {
			e.mu.Unlock()
			return "", ErrPostOnlyWouldCross
		}
	}

	id := exchange.OrderId(strconv.FormatUint(e.nextOrderId, 10))
	e.nextOrderId++

	remaining := qty
	for remaining.IsPositive() {
		resting := b.side(opposite)
		if len(resting) == 0 || !crosses(req.Side, price, req.MarketOrder, resting[0]) {
			break
		}
		maker := resting[0]
		fill := decimal.Min(remaining, maker.remaining)
		e.fillLocked(req.MarketId, owner, req.Side, maker.price, fill)
		e.fillLocked(req.MarketId, maker.owner, opposite, maker.price, fill)
		e.lastPrices[req.MarketId] = maker.price

		remaining = remaining.Sub(fill)
		maker.remaining = maker.remaining.Sub(fill)
		if !maker.remaining.IsPositive() {
			b.setSide(opposite, resting[1:])
		}
	}

	// 市价单未成交部分直接丢弃
	if remaining.IsPositive() && !req.MarketOrder {
		e.nextSeq++
		b.insert(&restingOrder{
			order: exchange.Order{
				Id:            id,
				MarketId:      req.MarketId,
				Side:          req.Side,
				Price:         req.Price,
				Quantity:      req.Quantity,
				ClientOrderId: req.ClientOrderId,
				PostOnly:      req.PostOnly,
				CreatedAt:     e.now(),
			},
			owner:     owner,
			price:     price,
			remaining: remaining,
			seq:       e.nextSeq,
		})
	}

	l1, _ := e.bookL1Locked(req.MarketId)
	e.mu.Unlock()

	e.publish(l1)
	return id, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, req exchange.CancelOrderReq) error {
	e.mu.Lock()
	b, ok := e.books[req.MarketId]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d", exchange.ErrMarketNotFound, req.MarketId)
	}
	o, ok := b.remove(req.OrderId)
	if ok && o.owner != e.accountId {
		// 不能撤别人的单
		b.insert(o)
		ok = false
	}
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", exchange.ErrOrderNotFound, req.OrderId)
	}
	l1, _ := e.bookL1Locked(req.MarketId)
	e.mu.Unlock()

	e.publish(l1)
	metrics.OrdersCancelledTotal.WithLabelValues(req.MarketId.ToString()).Inc()
	return nil
}

// checkLimits 价格需为 tick size 整数倍, 数量需为 step size 整数倍
func checkLimits(limits exchange.MarketLimits, price, qty decimal.Decimal, marketOrder bool) error {
	if limits.TickSize != "" && !marketOrder {
		tick, err := decimalx.ToDecimal(limits.TickSize)
		if err != nil {
			return err
		}
		if tick.IsPositive() && !price.Mod(tick).IsZero() {
			return fmt.Errorf("%w: price %s is not a multiple of tick size %s", exchange.ErrInvalidOrder, price, tick)
		}
	}
	if limits.StepSize != "" {
		step, err := decimalx.ToDecimal(limits.StepSize)
		if err != nil {
			return err
		}
		if step.IsPositive() && !qty.Mod(step).IsZero() {
			return fmt.Errorf("%w: quantity %s is not a multiple of step size %s", exchange.ErrInvalidOrder, qty, step)
		}
	}
	if limits.MinBaseQuantity != "" {
		minQty, err := decimalx.ToDecimal(limits.MinBaseQuantity)
		if err != nil {
			return err
		}
		if qty.LessThan(minQty) {
			return fmt.Errorf("%w: quantity %s below minimum %s", exchange.ErrInvalidOrder, qty, minQty)
		}
	}
	return nil
}
