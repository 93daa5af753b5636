package walkthrough

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/KNICEX/spin-perp/internal/entity"
	"github.com/KNICEX/spin-perp/internal/repo"
	"github.com/KNICEX/spin-perp/internal/schedule"
	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/KNICEX/spin-perp/pkg/decimalx"
)

type Config struct {
	Exchange      string // 写入流水, spin / paper
	AccountId     string
	MarketId      exchange.MarketId
	Trade         bool // false 时跳过撤单和下单
	AskPrice      float64
	AskQuantity   float64
	ClientOrderId uint32
	Listen        time.Duration // 概览之后继续监听 L1 的时长
}

// Task 按顺序演示行情、余额、订单、持仓、订阅和账户概览
type Task struct {
	cfg          Config
	svc          exchange.Service
	orderRepo    repo.OrderRepo
	snapshotRepo repo.SnapshotRepo
	p            *printer
	now          func() time.Time
}

type Option func(t *Task)

func WithOutput(w io.Writer) Option {
	return func(t *Task) {
		t.p.out = w
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Task) {
		t.now = now
	}
}

func NewTask(cfg Config, svc exchange.Service, orderRepo repo.OrderRepo, snapshotRepo repo.SnapshotRepo, opts ...Option) schedule.Task {
	t := &Task{
		cfg:          cfg,
		svc:          svc,
		orderRepo:    orderRepo,
		snapshotRepo: snapshotRepo,
		p:            &printer{out: os.Stdout},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Task) Name() string {
	return "spin perp walkthrough"
}

func (t *Task) Run(ctx context.Context) error {
	market, err := t.showMarket(ctx)
	if err != nil {
		return err
	}
	if err = t.showOrderbookL1(ctx, market); err != nil {
		return err
	}
	if err = t.showBalances(ctx); err != nil {
		return err
	}

	orders, err := t.showOrders(ctx, market)
	if err != nil {
		return err
	}
	if t.cfg.Trade {
		err = t.trade(ctx, market, orders)
		if errors.Is(err, exchange.ErrReadOnly) {
			slog.Warn("exchange is read only, skip cancel and place order", "error", err)
			t.p.printf("TRADING SKIPPED: %v\n", err)
			t.p.end()
		} else if err != nil {
			return err
		}
	} else {
		slog.Info("trading disabled, skip cancel and place order")
	}

	if err = t.showPositions(ctx); err != nil {
		return err
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	if err = t.listenBookL1(subCtx, market, &wg); err != nil {
		return err
	}

	if err = t.showAccountSummary(ctx); err != nil {
		return err
	}

	if t.cfg.Listen > 0 {
		select {
		case <-time.After(t.cfg.Listen):
		case <-ctx.Done():
		}
	}
	cancel()
	wg.Wait()
	return nil
}

// https://docs.api.spin.fi/perp/#get_market
func (t *Task) showMarket(ctx context.Context) (exchange.Market, error) {
	market, err := t.svc.MarketService().GetMarket(ctx, t.cfg.MarketId)
	if err != nil {
		return exchange.Market{}, fmt.Errorf("get market %d: %w", t.cfg.MarketId, err)
	}
	t.p.dump("MARKET EXAMPLE:", market)
	t.p.end()

	tick, err := market.TickSizeNumber()
	if err != nil {
		return exchange.Market{}, fmt.Errorf("tick size: %w", err)
	}
	t.p.printf("%s TICK SIZE: %v\n", market.Symbol, tick)
	t.p.end()
	return market, nil
}

// https://docs.api.spin.fi/perp/#get_orderbook
func (t *Task) showOrderbookL1(ctx context.Context, market exchange.Market) error {
	ob, err := t.svc.MarketService().GetOrderbook(ctx, exchange.GetOrderbookReq{MarketId: market.Id, Limit: 1})
	if err != nil {
		return fmt.Errorf("get orderbook: %w", err)
	}
	t.p.dump(fmt.Sprintf("%s ORDER BOOK L1:", market.Symbol), ob)

	ask, bid := ob.L1()
	askPrice, askQty, err := levelNumbers(ask)
	if err != nil {
		return err
	}
	bidPrice, bidQty, err := levelNumbers(bid)
	if err != nil {
		return err
	}
	t.p.table(fmt.Sprintf("%s ORDER BOOK L1 PRETTY:", market.Symbol), [][]string{
		{"", "price", "quantity"},
		{"asks", askPrice, askQty},
		{"bids", bidPrice, bidQty},
	})
	t.p.end()
	return nil
}

// https://docs.api.spin.fi/perp/#get_balance
func (t *Task) showBalances(ctx context.Context) error {
	accountSvc := t.svc.AccountService()
	balance, err := accountSvc.GetBalances(ctx, t.cfg.AccountId)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}
	base, err := accountSvc.GetBaseCurrency(ctx)
	if err != nil {
		return fmt.Errorf("get base currency: %w", err)
	}
	t.p.dump(fmt.Sprintf("%s BALANCES:", t.cfg.AccountId), balance)

	amount, err := decimalx.ToNumber(balance, base.Decimals)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	t.p.table(fmt.Sprintf("%s BALANCES PRETTY:", t.cfg.AccountId), [][]string{
		{"token", "address", "token_amount_on_smart_contract"},
		{base.Symbol, base.Address, formatNumber(amount)},
	})
	t.p.end()
	return nil
}

// https://docs.api.spin.fi/perp/#get_orders
func (t *Task) showOrders(ctx context.Context, market exchange.Market) ([]exchange.Order, error) {
	orders, err := t.svc.OrderService().GetOrders(ctx, exchange.GetOrdersReq{
		MarketId:  market.Id,
		AccountId: t.cfg.AccountId,
	})
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}
	t.p.dump(fmt.Sprintf("%s ORDERS:", t.cfg.AccountId), orders)
	t.p.end()
	return orders, nil
}

// trade 撤掉第一个挂单, 再挂一个 post only 卖单
func (t *Task) trade(ctx context.Context, market exchange.Market, orders []exchange.Order) error {
	if len(orders) > 0 {
		if err := t.cancelOrder(ctx, orders[0]); err != nil {
			return err
		}
	}
	return t.placeAsk(ctx, market)
}

// https://docs.api.spin.fi/perp/#cancel_order
func (t *Task) cancelOrder(ctx context.Context, order exchange.Order) error {
	t.p.printf("CANCELING %s ID:%s\n", t.cfg.AccountId, order.Id)
	err := t.svc.OrderService().CancelOrder(ctx, exchange.CancelOrderReq{
		MarketId: order.MarketId,
		OrderId:  order.Id,
	})
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", order.Id, err)
	}
	t.p.end()

	err = t.orderRepo.UpdateStatus(ctx, t.cfg.Exchange, order.Id.ToString(), entity.OrderStatusCancelled)
	if errors.Is(err, repo.ErrRecordNotFound) {
		// 不是本程序下的单
		_, err = t.orderRepo.Create(ctx, entity.OrderRecord{
			AccountId:     t.cfg.AccountId,
			MarketId:      uint64(order.MarketId),
			OrderId:       order.Id.ToString(),
			Exchange:      t.cfg.Exchange,
			Side:          string(order.Side),
			Price:         order.Price,
			Quantity:      order.Quantity,
			ClientOrderId: order.ClientOrderId,
			Status:        entity.OrderStatusCancelled,
			CreatedAt:     t.now(),
		})
	}
	if err != nil {
		slog.Error("failed to journal cancelled order", "order", order.Id, "error", err)
	}
	return nil
}

// https://docs.api.spin.fi/perp/#place_ask
func (t *Task) placeAsk(ctx context.Context, market exchange.Market) error {
	price, err := decimalx.ToScaledString(t.cfg.AskPrice)
	if err != nil {
		return fmt.Errorf("ask price: %w", err)
	}
	quantity, err := decimalx.ToScaledString(t.cfg.AskQuantity)
	if err != nil {
		return fmt.Errorf("ask quantity: %w", err)
	}

	t.p.printf("PLACING ORDER\nASK %v %s CONTRACTS @ %v %s\n",
		t.cfg.AskQuantity, market.Symbol, t.cfg.AskPrice, market.QuoteCurrency.Symbol)
	req := exchange.PlaceOrderReq{
		MarketId:      market.Id,
		Side:          exchange.SideAsk,
		Price:         price,
		Quantity:      quantity,
		MarketOrder:   false,
		PostOnly:      true,
		ClientOrderId: t.cfg.ClientOrderId,
	}
	id, err := t.svc.OrderService().PlaceOrder(ctx, req)
	if err != nil {
		return fmt.Errorf("place ask: %w", err)
	}
	t.p.printf("ORDER ID: %s\n", id)
	t.p.end()

	_, err = t.orderRepo.Create(ctx, entity.OrderRecord{
		AccountId:     t.cfg.AccountId,
		MarketId:      uint64(market.Id),
		OrderId:       id.ToString(),
		Exchange:      t.cfg.Exchange,
		Side:          string(req.Side),
		Price:         req.Price,
		Quantity:      req.Quantity,
		ClientOrderId: req.ClientOrderId,
		Status:        entity.OrderStatusPlaced,
		CreatedAt:     t.now(),
	})
	if err != nil {
		slog.Error("failed to journal placed order", "order", id, "error", err)
	}
	return nil
}

// https://docs.api.spin.fi/perp/#check_position
func (t *Task) showPositions(ctx context.Context) error {
	positions, err := t.svc.PositionService().GetPositions(ctx, t.cfg.AccountId)
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}
	t.p.dump("GETTING POSITIONS", positions)
	t.p.end()
	return nil
}

// listenBookL1 订阅在后台打印, ctx 结束后 wg 完成
func (t *Task) listenBookL1(ctx context.Context, market exchange.Market, wg *sync.WaitGroup) error {
	t.p.printf("L1 ORDERBOOK SUBSCRIPTION:\n")
	ch, err := t.svc.MarketService().SubscribeBookL1(ctx, market.Id)
	if err != nil {
		return fmt.Errorf("subscribe book L1: %w", err)
	}
	t.p.end()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for l1 := range ch {
			askPrice, askQty, err := levelNumbers(l1.Ask)
			if err != nil {
				slog.Warn("bad L1 ask", "market", l1.MarketId, "error", err)
				continue
			}
			bidPrice, bidQty, err := levelNumbers(l1.Bid)
			if err != nil {
				slog.Warn("bad L1 bid", "market", l1.MarketId, "error", err)
				continue
			}
			t.p.printf("[%s] %s L1 ask %s x %s | bid %s x %s\n",
				l1.Timestamp.Format(time.RFC3339), market.Symbol, askPrice, askQty, bidPrice, bidQty)
		}
	}()
	return nil
}

func (t *Task) showAccountSummary(ctx context.Context) error {
	balance, err := t.svc.AccountService().GetBalances(ctx, t.cfg.AccountId)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}
	base, err := t.svc.AccountService().GetBaseCurrency(ctx)
	if err != nil {
		return fmt.Errorf("get base currency: %w", err)
	}
	positions, err := t.svc.PositionService().GetPositions(ctx, t.cfg.AccountId)
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}

	summary, err := exchange.Summarize(balance, base, positions)
	if err != nil {
		return fmt.Errorf("account summary: %w", err)
	}
	t.p.dump("ACCOUNT SUMMARY:", summary)
	t.p.end()

	_, err = t.snapshotRepo.Create(ctx, entity.AccountSnapshot{
		AccountId:   t.cfg.AccountId,
		Token:       summary.Token,
		Balance:     summary.Balance,
		MarginRatio: summary.MarginRatio,
		Equity:      summary.Equity,
		Upnl:        summary.Upnl,
		CreatedAt:   t.now(),
	})
	if err != nil {
		slog.Error("failed to save account snapshot", "account", t.cfg.AccountId, "error", err)
	}
	return nil
}

// levelNumbers 空档位输出 "-"
func levelNumbers(level *exchange.BookLevel) (price, quantity string, err error) {
	if level == nil {
		return "-", "-", nil
	}
	p, err := decimalx.ToNumber(level.Price)
	if err != nil {
		return "", "", fmt.Errorf("price: %w", err)
	}
	q, err := decimalx.ToNumber(level.Quantity)
	if err != nil {
		return "", "", fmt.Errorf("quantity: %w", err)
	}
	return formatNumber(p), formatNumber(q), nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
