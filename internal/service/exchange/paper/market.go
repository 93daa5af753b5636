package paper

import (
	"context"
	"fmt"
	"sort"

	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/samber/lo"
)

type subscriber struct {
	ch chan exchange.BookL1
}

func (e *Exchange) GetMarket(ctx context.Context, id exchange.MarketId) (exchange.Market, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.markets[id]
	if !ok {
		return exchange.Market{}, fmt.Errorf("%w: %d", exchange.ErrMarketNotFound, id)
	}
	return m, nil
}

func (e *Exchange) GetMarkets(ctx context.Context) ([]exchange.Market, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	markets := lo.Values(e.markets)
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].Id < markets[j].Id
	})
	return markets, nil
}

func (e *Exchange) GetOrderbook(ctx context.Context, req exchange.GetOrderbookReq) (exchange.Orderbook, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, ok := e.books[req.MarketId]
	if !ok {
		return exchange.Orderbook{}, fmt.Errorf("%w: %d", exchange.ErrMarketNotFound, req.MarketId)
	}
	return exchange.Orderbook{
		MarketId:  req.MarketId,
		AskOrders: levels(b.asks, req.Limit),
		BidOrders: levels(b.bids, req.Limit),
	}, nil
}

// SubscribeBookL1 订阅后立即推送当前一档, 之后每次盘口变化推送一次; 消费过慢时丢弃
func (e *Exchange) SubscribeBookL1(ctx context.Context, id exchange.MarketId) (<-chan exchange.BookL1, error) {
	e.mu.RLock()
	snapshot, err := e.bookL1Locked(id)
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	sub := &subscriber{ch: make(chan exchange.BookL1, 16)}
	sub.ch <- snapshot

	e.subMu.Lock()
	if e.subs[id] == nil {
		e.subs[id] = make(map[*subscriber]struct{})
	}
	e.subs[id][sub] = struct{}{}
	e.subMu.Unlock()

	go func() {
		<-ctx.Done()
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.subs[id], sub)
		close(sub.ch)
	}()
	return sub.ch, nil
}

// bookL1Locked 调用方持有 e.mu
func (e *Exchange) bookL1Locked(id exchange.MarketId) (exchange.BookL1, error) {
	b, ok := e.books[id]
	if !ok {
		return exchange.BookL1{}, fmt.Errorf("%w: %d", exchange.ErrMarketNotFound, id)
	}
	ask, bid := exchange.Orderbook{
		AskOrders: levels(b.asks, 1),
		BidOrders: levels(b.bids, 1),
	}.L1()
	return exchange.BookL1{
		MarketId:  id,
		Ask:       ask,
		Bid:       bid,
		Timestamp: e.now(),
	}, nil
}

func (e *Exchange) publish(l1 exchange.BookL1) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for sub := range e.subs[l1.MarketId] {
		select {
		case sub.ch <- l1:
		default:
		}
	}
}
