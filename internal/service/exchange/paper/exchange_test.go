package paper

import (
	"context"
	"testing"
	"time"

	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/KNICEX/spin-perp/pkg/decimalx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "alice.testnet"

var testMarket = exchange.Market{
	Id:     1,
	Symbol: "NEAR-PERP",
	Limits: exchange.MarketLimits{
		TickSize:        "1000000000000000000000",   // 0.001
		StepSize:        "100000000000000000000000", // 0.1
		MinBaseQuantity: "100000000000000000000000",
	},
}

var usdc = exchange.Currency{Symbol: "USDC", Address: "usdc.fakes.testnet", Decimals: 6}

// newTestExchange 卖盘 2.0x5 2.1x5, 买盘 1.9x5 1.8x5, 余额 1000 USDC
func newTestExchange(t *testing.T) *Exchange {
	e := New(testAccount, usdc,
		WithMarket(testMarket),
		WithBalance(testAccount, decimal.NewFromInt(1000)),
	)
	for _, l := range []struct {
		side  exchange.Side
		price string
	}{
		{exchange.SideAsk, "2.0"},
		{exchange.SideAsk, "2.1"},
		{exchange.SideBid, "1.9"},
		{exchange.SideBid, "1.8"},
	} {
		_, err := e.AddLiquidity(1, l.side, decimalx.MustFromString(l.price), decimal.NewFromInt(5))
		require.NoError(t, err)
	}
	return e
}

func num(t *testing.T, s string, decimals ...int32) float64 {
	v, err := decimalx.ToNumber(s, decimals...)
	require.NoError(t, err)
	return v
}

func sc(t *testing.T, f float64) string {
	s, err := decimalx.ToScaledString(f)
	require.NoError(t, err)
	return s
}

func TestExchange_GetOrderbook(t *testing.T) {
	e := newTestExchange(t)
	ctx := context.Background()

	ob, err := e.GetOrderbook(ctx, exchange.GetOrderbookReq{MarketId: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, ob.AskOrders, 1)
	require.Len(t, ob.BidOrders, 1)
	assert.Equal(t, 2.0, num(t, ob.AskOrders[0].Price))
	assert.Equal(t, 1.9, num(t, ob.BidOrders[0].Price))
	assert.Equal(t, 5.0, num(t, ob.BidOrders[0].Quantity))

	ob, err = e.GetOrderbook(ctx, exchange.GetOrderbookReq{MarketId: 1})
	require.NoError(t, err)
	assert.Len(t, ob.AskOrders, 2)
	assert.Len(t, ob.BidOrders, 2)

	// 同价聚合
	_, err = e.AddLiquidity(1, exchange.SideAsk, decimalx.MustFromString("2.0"), decimal.NewFromInt(1))
	require.NoError(t, err)
	ob, err = e.GetOrderbook(ctx, exchange.GetOrderbookReq{MarketId: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 6.0, num(t, ob.AskOrders[0].Quantity))

	_, err = e.GetOrderbook(ctx, exchange.GetOrderbookReq{MarketId: 9})
	assert.ErrorIs(t, err, exchange.ErrMarketNotFound)
}

func TestExchange_PostOnly(t *testing.T) {
	e := newTestExchange(t)
	ctx := context.Background()

	_, err := e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideAsk, Price: sc(t, 1.9), Quantity: sc(t, 1), PostOnly: true,
	})
	assert.ErrorIs(t, err, ErrPostOnlyWouldCross)

	id, err := e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideAsk, Price: sc(t, 2.5), Quantity: sc(t, 10), PostOnly: true, ClientOrderId: 1000,
	})
	require.NoError(t, err)

	orders, err := e.GetOrders(ctx, exchange.GetOrdersReq{MarketId: 1, AccountId: testAccount})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, id, orders[0].Id)
	assert.Equal(t, uint32(1000), orders[0].ClientOrderId)
	assert.Equal(t, 10.0, num(t, orders[0].RemainingQuantity))

	positions, err := e.GetPositions(ctx, testAccount)
	require.NoError(t, err)
	assert.Empty(t, positions.Positions)
	assert.Equal(t, "0", positions.MarginRatio)
}

func TestExchange_CancelOrder(t *testing.T) {
	e := newTestExchange(t)
	ctx := context.Background()

	id, err := e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideBid, Price: sc(t, 1.5), Quantity: sc(t, 1), PostOnly: true,
	})
	require.NoError(t, err)

	require.NoError(t, e.CancelOrder(ctx, exchange.CancelOrderReq{MarketId: 1, OrderId: id}))
	err = e.CancelOrder(ctx, exchange.CancelOrderReq{MarketId: 1, OrderId: id})
	assert.ErrorIs(t, err, exchange.ErrOrderNotFound)

	// 流动性订单属于 maker, 不能撤
	err = e.CancelOrder(ctx, exchange.CancelOrderReq{MarketId: 1, OrderId: "1"})
	assert.ErrorIs(t, err, exchange.ErrOrderNotFound)
	ob, err := e.GetOrderbook(ctx, exchange.GetOrderbookReq{MarketId: 1})
	require.NoError(t, err)
	assert.Len(t, ob.AskOrders, 2)

	orders, err := e.GetOrders(ctx, exchange.GetOrdersReq{MarketId: 1, AccountId: testAccount})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestExchange_MarketOrderOpenAndClose(t *testing.T) {
	e := newTestExchange(t)
	ctx := context.Background()

	_, err := e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideBid, Quantity: sc(t, 7), MarketOrder: true,
	})
	require.NoError(t, err)

	positions, err := e.GetPositions(ctx, testAccount)
	require.NoError(t, err)
	require.Len(t, positions.Positions, 1)
	pos := positions.Positions[0]
	assert.Equal(t, exchange.PositionSideLong, pos.Side)
	assert.Equal(t, 7.0, num(t, pos.BaseQuantity))
	assert.InDelta(t, 14.2/7, num(t, pos.EntryPrice), 1e-9)
	// mark = (2.1 + 1.9) / 2
	assert.InDelta(t, -0.2, num(t, pos.Upnl), 1e-9)

	ob, err := e.GetOrderbook(ctx, exchange.GetOrderbookReq{MarketId: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2.1, num(t, ob.AskOrders[0].Price))
	assert.Equal(t, 3.0, num(t, ob.AskOrders[0].Quantity))

	// 平仓: 5@1.9 + 2@1.8, 已实现 -1.1
	_, err = e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideAsk, Quantity: sc(t, 7), MarketOrder: true,
	})
	require.NoError(t, err)

	positions, err = e.GetPositions(ctx, testAccount)
	require.NoError(t, err)
	assert.Empty(t, positions.Positions)

	balance, err := e.GetBalances(ctx, testAccount)
	require.NoError(t, err)
	assert.InDelta(t, 998.9, num(t, balance, usdc.Decimals), 1e-5)
}

func TestExchange_LimitOrderPartialFill(t *testing.T) {
	e := newTestExchange(t)
	ctx := context.Background()

	id, err := e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideBid, Price: sc(t, 2.0), Quantity: sc(t, 6),
	})
	require.NoError(t, err)

	orders, err := e.GetOrders(ctx, exchange.GetOrdersReq{MarketId: 1, AccountId: testAccount})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, id, orders[0].Id)
	assert.Equal(t, 1.0, num(t, orders[0].RemainingQuantity))

	ob, err := e.GetOrderbook(ctx, exchange.GetOrderbookReq{MarketId: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2.0, num(t, ob.BidOrders[0].Price))
	assert.Equal(t, 2.1, num(t, ob.AskOrders[0].Price))

	positions, err := e.GetPositions(ctx, testAccount)
	require.NoError(t, err)
	require.Len(t, positions.Positions, 1)
	assert.Equal(t, 5.0, num(t, positions.Positions[0].BaseQuantity))
	assert.NotEqual(t, "0", positions.MarginRatio)

	summary, err := exchange.Summarize(func() string {
		b, err := e.GetBalances(ctx, testAccount)
		require.NoError(t, err)
		return b
	}(), usdc, positions)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, summary.Balance)
	// mark = (2.1 + 2.0) / 2 = 2.05, entry 2.0
	assert.InDelta(t, 0.25, summary.Upnl, 1e-9)
	assert.InDelta(t, 1000.25, summary.Equity, 1e-9)
}

func TestExchange_ShortFlip(t *testing.T) {
	e := newTestExchange(t)
	ctx := context.Background()

	_, err := e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideAsk, Quantity: sc(t, 3), MarketOrder: true,
	})
	require.NoError(t, err)
	_, err = e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideBid, Quantity: sc(t, 5), MarketOrder: true,
	})
	require.NoError(t, err)

	positions, err := e.GetPositions(ctx, testAccount)
	require.NoError(t, err)
	require.Len(t, positions.Positions, 1)
	assert.Equal(t, exchange.PositionSideLong, positions.Positions[0].Side)
	assert.Equal(t, 2.0, num(t, positions.Positions[0].BaseQuantity))
	assert.Equal(t, 2.0, num(t, positions.Positions[0].EntryPrice))

	// 空 3 @1.9, 买回 3 @2.0: -0.3
	balance, err := e.GetBalances(ctx, testAccount)
	require.NoError(t, err)
	assert.InDelta(t, 999.7, num(t, balance, usdc.Decimals), 1e-5)
}

func TestExchange_Limits(t *testing.T) {
	e := newTestExchange(t)
	ctx := context.Background()

	_, err := e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideBid, Price: sc(t, 1.0005), Quantity: sc(t, 1),
	})
	assert.ErrorIs(t, err, exchange.ErrInvalidOrder)

	_, err = e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideBid, Price: sc(t, 1), Quantity: sc(t, 1.15),
	})
	assert.ErrorIs(t, err, exchange.ErrInvalidOrder)

	_, err = e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideBid, Price: sc(t, 1), Quantity: sc(t, 0.05),
	})
	assert.ErrorIs(t, err, exchange.ErrInvalidOrder)

	_, err = e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 2, Side: exchange.SideBid, Price: sc(t, 1), Quantity: sc(t, 1),
	})
	assert.ErrorIs(t, err, exchange.ErrMarketNotFound)
}

func TestExchange_SubscribeBookL1(t *testing.T) {
	e := newTestExchange(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := e.SubscribeBookL1(ctx, 1)
	require.NoError(t, err)

	snapshot := <-ch
	require.NotNil(t, snapshot.Ask)
	assert.Equal(t, 2.0, num(t, snapshot.Ask.Price))

	_, err = e.PlaceOrder(context.Background(), exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideAsk, Price: sc(t, 1.95), Quantity: sc(t, 1), PostOnly: true,
	})
	require.NoError(t, err)

	select {
	case l1 := <-ch:
		require.NotNil(t, l1.Ask)
		assert.Equal(t, 1.95, num(t, l1.Ask.Price))
		assert.Equal(t, 1.9, num(t, l1.Bid.Price))
	case <-time.After(time.Second):
		t.Fatal("no L1 update")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	_, err = e.SubscribeBookL1(context.Background(), 5)
	assert.ErrorIs(t, err, exchange.ErrMarketNotFound)
}

func TestExchange_Markets(t *testing.T) {
	e := New(testAccount, usdc,
		WithMarket(exchange.Market{Id: 2, Symbol: "BTC-PERP"}),
		WithMarket(testMarket),
	)
	markets, err := e.GetMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, "NEAR-PERP", markets[0].Symbol)

	m, err := e.GetMarket(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "BTC-PERP", m.Symbol)

	base, err := e.GetBaseCurrency(context.Background())
	require.NoError(t, err)
	assert.Equal(t, usdc, base)
}

func TestExchange_OrderIdSeed(t *testing.T) {
	ctx := context.Background()
	e := New(testAccount, usdc,
		WithMarket(testMarket),
		WithBalance(testAccount, decimal.NewFromInt(1000)),
		WithOrderIdSeed(500),
	)

	id, err := e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideAsk, Price: sc(t, 2.5), Quantity: sc(t, 1), PostOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderId("500"), id)

	id, err = e.AddLiquidity(1, exchange.SideBid, decimalx.MustFromString("1.9"), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderId("501"), id)

	// 0 保持默认
	e = New(testAccount, usdc, WithMarket(testMarket), WithOrderIdSeed(0))
	id, err = e.AddLiquidity(1, exchange.SideBid, decimalx.MustFromString("1.9"), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderId("1"), id)
}
