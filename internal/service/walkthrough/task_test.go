package walkthrough

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/KNICEX/spin-perp/internal/entity"
	"github.com/KNICEX/spin-perp/internal/repo"
	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/KNICEX/spin-perp/internal/service/exchange/paper"
	"github.com/KNICEX/spin-perp/pkg/decimalx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAccount = "alice.testnet"

var (
	testNow = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	usdc    = exchange.Currency{Symbol: "USDC", Address: "usdc.fakes.testnet", Decimals: 6}
)

func newTestExchange(t *testing.T, opts ...paper.Option) *paper.Exchange {
	opts = append([]paper.Option{
		paper.WithMarket(exchange.Market{
			Id:            1,
			Symbol:        "NEAR-PERP",
			BaseCurrency:  exchange.Currency{Symbol: "NEAR", Address: "wrap.testnet", Decimals: 24},
			QuoteCurrency: usdc,
			Limits: exchange.MarketLimits{
				TickSize: "1000000000000000000000",
				StepSize: "100000000000000000000000",
			},
		}),
		paper.WithBalance(testAccount, decimal.NewFromInt(1000)),
		paper.WithClock(func() time.Time { return testNow }),
	}, opts...)
	e := paper.New(testAccount, usdc, opts...)
	_, err := e.AddLiquidity(1, exchange.SideAsk, decimalx.MustFromString("2"), decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = e.AddLiquidity(1, exchange.SideBid, decimalx.MustFromString("1.9"), decimal.NewFromInt(5))
	require.NoError(t, err)
	return e
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repo.InitTables(db))
	return db
}

func testConfig(trade bool) Config {
	return Config{
		Exchange:      "paper",
		AccountId:     testAccount,
		MarketId:      1,
		Trade:         trade,
		AskPrice:      2.5,
		AskQuantity:   10,
		ClientOrderId: 1000,
	}
}

func TestTask_Run(t *testing.T) {
	ctx := context.Background()
	e := newTestExchange(t)
	db := initTestDB(t)
	orderRepo := repo.NewOrderRepo(db)
	snapshotRepo := repo.NewSnapshotRepo(db)

	// 程序外挂的单, 会被第一个撤掉
	stale, err := e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideBid, Price: "1500000000000000000000000", Quantity: "1000000000000000000000000", PostOnly: true,
	})
	require.NoError(t, err)

	var out bytes.Buffer
	task := NewTask(testConfig(true), e, orderRepo, snapshotRepo,
		WithOutput(&out),
		WithClock(func() time.Time { return testNow }),
	)
	assert.Equal(t, "spin perp walkthrough", task.Name())
	require.NoError(t, task.Run(ctx))

	s := out.String()
	for _, section := range []string{
		"MARKET EXAMPLE:",
		"NEAR-PERP TICK SIZE: 0.001",
		"NEAR-PERP ORDER BOOK L1:",
		"NEAR-PERP ORDER BOOK L1 PRETTY:",
		"alice.testnet BALANCES PRETTY:",
		"usdc.fakes.testnet",
		"CANCELING alice.testnet ID:" + stale.ToString(),
		"ASK 10 NEAR-PERP CONTRACTS @ 2.5 USDC",
		"ORDER ID:",
		"GETTING POSITIONS",
		"L1 ORDERBOOK SUBSCRIPTION:",
		"NEAR-PERP L1 ask 2 x 5 | bid 1.9 x 5",
		"ACCOUNT SUMMARY:",
		separator,
	} {
		assert.Contains(t, s, section)
	}
	assert.Regexp(t, `USDC\s+usdc\.fakes\.testnet\s+1000\n`, s)

	orders, err := e.GetOrders(ctx, exchange.GetOrdersReq{MarketId: 1, AccountId: testAccount})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].PostOnly)
	assert.Equal(t, uint32(1000), orders[0].ClientOrderId)
	assert.Equal(t, 2.5, mustNumber(t, orders[0].Price))

	records, err := orderRepo.FindByMarket(ctx, testAccount, 1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, stale.ToString(), records[0].OrderId)
	assert.Equal(t, entity.OrderStatusCancelled, records[0].Status)
	assert.Equal(t, orders[0].Id.ToString(), records[1].OrderId)
	assert.Equal(t, entity.OrderStatusPlaced, records[1].Status)
	assert.Equal(t, "paper", records[1].Exchange)

	snapshot, err := snapshotRepo.Latest(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, "USDC", snapshot.Token)
	assert.Equal(t, 1000.0, snapshot.Balance)
	assert.Equal(t, 1000.0, snapshot.Equity)
	assert.Zero(t, snapshot.Upnl)
	assert.True(t, snapshot.CreatedAt.Equal(testNow))
}

func TestTask_RunReadOnly(t *testing.T) {
	ctx := context.Background()
	e := newTestExchange(t)
	db := initTestDB(t)
	orderRepo := repo.NewOrderRepo(db)

	var out bytes.Buffer
	task := NewTask(testConfig(false), e, orderRepo, repo.NewSnapshotRepo(db), WithOutput(&out))
	require.NoError(t, task.Run(ctx))

	assert.NotContains(t, out.String(), "PLACING ORDER")
	assert.Contains(t, out.String(), "ACCOUNT SUMMARY:")

	records, err := orderRepo.FindByMarket(ctx, testAccount, 1)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTask_RunTwiceSameJournal(t *testing.T) {
	ctx := context.Background()
	db := initTestDB(t)
	orderRepo := repo.NewOrderRepo(db)
	snapshotRepo := repo.NewSnapshotRepo(db)

	for i := 0; i < 2; i++ {
		// 每次运行都是新的模拟盘, 订单号接着流水继续分配
		maxId, err := orderRepo.MaxOrderId(ctx, "paper")
		require.NoError(t, err)
		e := newTestExchange(t, paper.WithOrderIdSeed(maxId+1))

		task := NewTask(testConfig(true), e, orderRepo, snapshotRepo, WithOutput(&bytes.Buffer{}))
		require.NoError(t, task.Run(ctx))
	}

	records, err := orderRepo.FindByMarket(ctx, testAccount, 1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].OrderId, records[1].OrderId)
	for _, r := range records {
		assert.Equal(t, entity.OrderStatusPlaced, r.Status)
	}
}

// readOnlyExchange 查询走模拟盘, 下单撤单一律拒绝
type readOnlyExchange struct {
	*paper.Exchange
}

func (e readOnlyExchange) OrderService() exchange.OrderService {
	return readOnlyOrders{OrderService: e.Exchange}
}

type readOnlyOrders struct {
	exchange.OrderService
}

func (readOnlyOrders) PlaceOrder(ctx context.Context, req exchange.PlaceOrderReq) (exchange.OrderId, error) {
	return "", exchange.ErrReadOnly
}

func (readOnlyOrders) CancelOrder(ctx context.Context, req exchange.CancelOrderReq) error {
	return exchange.ErrReadOnly
}

func TestTask_RunReadOnlyExchange(t *testing.T) {
	ctx := context.Background()
	e := newTestExchange(t)
	db := initTestDB(t)
	orderRepo := repo.NewOrderRepo(db)
	snapshotRepo := repo.NewSnapshotRepo(db)

	_, err := e.PlaceOrder(ctx, exchange.PlaceOrderReq{
		MarketId: 1, Side: exchange.SideBid, Price: "1500000000000000000000000", Quantity: "1000000000000000000000000", PostOnly: true,
	})
	require.NoError(t, err)

	var out bytes.Buffer
	task := NewTask(testConfig(true), readOnlyExchange{e}, orderRepo, snapshotRepo, WithOutput(&out))
	require.NoError(t, task.Run(ctx))

	s := out.String()
	assert.Contains(t, s, "TRADING SKIPPED:")
	assert.NotContains(t, s, "ORDER ID:")
	assert.Contains(t, s, "GETTING POSITIONS")
	assert.Contains(t, s, "ACCOUNT SUMMARY:")

	records, err := orderRepo.FindByMarket(ctx, testAccount, 1)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = snapshotRepo.Latest(ctx, testAccount)
	assert.NoError(t, err)
}

func TestTask_RunListenUntilCancelled(t *testing.T) {
	e := newTestExchange(t)
	db := initTestDB(t)

	cfg := testConfig(false)
	cfg.Listen = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	task := NewTask(cfg, e, repo.NewOrderRepo(db), repo.NewSnapshotRepo(db), WithOutput(&out))

	start := time.Now()
	require.NoError(t, task.Run(ctx))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestTask_RunUnknownMarket(t *testing.T) {
	e := newTestExchange(t)
	db := initTestDB(t)

	cfg := testConfig(true)
	cfg.MarketId = 42
	task := NewTask(cfg, e, repo.NewOrderRepo(db), repo.NewSnapshotRepo(db), WithOutput(&bytes.Buffer{}))
	err := task.Run(context.Background())
	assert.ErrorIs(t, err, exchange.ErrMarketNotFound)
}

func TestLevelNumbers(t *testing.T) {
	price, qty, err := levelNumbers(nil)
	require.NoError(t, err)
	assert.Equal(t, "-", price)
	assert.Equal(t, "-", qty)

	price, qty, err = levelNumbers(&exchange.BookLevel{
		Price:    "2150000000000000000000000",
		Quantity: "12500000000000000000000000",
	})
	require.NoError(t, err)
	assert.Equal(t, "2.15", price)
	assert.Equal(t, "12.5", qty)

	_, _, err = levelNumbers(&exchange.BookLevel{Price: "1.5", Quantity: "1"})
	assert.True(t, decimalx.ParseError.Has(err))
}

func mustNumber(t *testing.T, s string) float64 {
	v, err := decimalx.ToNumber(s)
	require.NoError(t, err)
	return v
}
