package paper

import (
	"errors"
	"sync"
	"time"

	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/shopspring/decimal"
)

// 编译时检查接口实现
var (
	_ exchange.Service         = (*Exchange)(nil)
	_ exchange.MarketService   = (*Exchange)(nil)
	_ exchange.AccountService  = (*Exchange)(nil)
	_ exchange.OrderService    = (*Exchange)(nil)
	_ exchange.PositionService = (*Exchange)(nil)
)

// MakerAccount 通过 AddLiquidity 挂出的流动性归属该账户
const MakerAccount = "paper.maker"

var ErrPostOnlyWouldCross = errors.New("post only order would cross the book")

// Exchange 内存撮合的模拟交易所, 下单账户固定为 accountId
type Exchange struct {
	accountId    string
	baseCurrency exchange.Currency
	now          func() time.Time

	mu          sync.RWMutex
	markets     map[exchange.MarketId]exchange.Market
	books       map[exchange.MarketId]*book
	lastPrices  map[exchange.MarketId]decimal.Decimal
	balances    map[string]decimal.Decimal                 // 真实单位
	positions   map[string]map[exchange.MarketId]*position // key: account
	nextOrderId uint64
	nextSeq     uint64

	subMu sync.Mutex
	subs  map[exchange.MarketId]map[*subscriber]struct{}
}

type Option func(e *Exchange)

func WithMarket(m exchange.Market) Option {
	return func(e *Exchange) {
		e.markets[m.Id] = m
		e.books[m.Id] = &book{}
	}
}

// WithBalance 初始余额, 真实单位
func WithBalance(accountId string, amount decimal.Decimal) Option {
	return func(e *Exchange) {
		e.balances[accountId] = amount
	}
}

// WithOrderIdSeed 订单号从 next 开始分配, 多次运行共用流水库时避免重号
func WithOrderIdSeed(next uint64) Option {
	return func(e *Exchange) {
		if next > 0 {
			e.nextOrderId = next
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Exchange) {
		e.now = now
	}
}

func New(accountId string, baseCurrency exchange.Currency, opts ...Option) *Exchange {
	e := &Exchange{
		accountId:    accountId,
		baseCurrency: baseCurrency,
		now:          time.Now,
		markets:      make(map[exchange.MarketId]exchange.Market),
		books:        make(map[exchange.MarketId]*book),
		lastPrices:   make(map[exchange.MarketId]decimal.Decimal),
		balances:     make(map[string]decimal.Decimal),
		positions:    make(map[string]map[exchange.MarketId]*position),
		nextOrderId:  1,
		subs:         make(map[exchange.MarketId]map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exchange) MarketService() exchange.MarketService {
	return e
}

func (e *Exchange) AccountService() exchange.AccountService {
	return e
}

func (e *Exchange) OrderService() exchange.OrderService {
	return e
}

func (e *Exchange) PositionService() exchange.PositionService {
	return e
}
