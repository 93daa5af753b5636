package paper

import (
	"sort"

	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/shopspring/decimal"
)

type restingOrder struct {
	order     exchange.Order
	owner     string
	price     decimal.Decimal
	remaining decimal.Decimal
	seq       uint64
}

// book asks 价格升序, bids 价格降序, 同价按时间优先
type book struct {
	asks []*restingOrder
	bids []*restingOrder
}

func (b *book) side(s exchange.Side) []*restingOrder {
	if s == exchange.SideAsk {
		return b.asks
	}
	return b.bids
}

func (b *book) setSide(s exchange.Side, orders []*restingOrder) {
	if s == exchange.SideAsk {
		b.asks = orders
		return
	}
	b.bids = orders
}

func (b *book) insert(o *restingOrder) {
	orders := append(b.side(o.order.Side), o)
	asc := o.order.Side == exchange.SideAsk
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].price.Equal(orders[j].price) {
			if asc {
				return orders[i].price.LessThan(orders[j].price)
			}
			return orders[i].price.GreaterThan(orders[j].price)
		}
		return orders[i].seq < orders[j].seq
	})
	b.setSide(o.order.Side, orders)
}

func (b *book) remove(id exchange.OrderId) (*restingOrder, bool) {
	for _, s := range []exchange.Side{exchange.SideAsk, exchange.SideBid} {
		orders := b.side(s)
		for i, o := range orders {
			if o.order.Id == id {
				b.setSide(s, append(orders[:i:i], orders[i+1:]...))
				return o, true
			}
		}
	}
	return nil, false
}

// crosses taker 以 price 下单是否能与 resting 成交, 市价单总能成交
func crosses(taker exchange.Side, price decimal.Decimal, market bool, resting *restingOrder) bool {
	if market {
		return true
	}
	if taker == exchange.SideAsk {
		return resting.price.GreaterThanOrEqual(price)
	}
	return resting.price.LessThanOrEqual(price)
}

// levels 按价格聚合, limit <= 0 不限制档位
func levels(orders []*restingOrder, limit int) []exchange.BookLevel {
	var res []exchange.BookLevel
	var (
		curPrice decimal.Decimal
		curQty   decimal.Decimal
		started  bool
	)
	flush := func() {
		if !started {
			return
		}
		res = append(res, exchange.BookLevel{Price: scaled(curPrice), Quantity: scaled(curQty)})
	}
	for _, o := range orders {
		if started && o.price.Equal(curPrice) {
			curQty = curQty.Add(o.remaining)
			continue
		}
		flush()
		if limit > 0 && len(res) >= limit {
			return res
		}
		curPrice, curQty, started = o.price, o.remaining, true
	}
	flush()
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}
