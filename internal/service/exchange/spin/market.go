package spin

import (
	"context"

	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/samber/lo"
)

var _ exchange.MarketService = (*MarketService)(nil)

type MarketService struct {
	cli   *rpcClient
	wsURL string
}

func NewMarketService(cli *rpcClient, wsURL string) *MarketService {
	return &MarketService{cli: cli, wsURL: wsURL}
}

// GetMarket https://docs.api.spin.fi/perp/#get_market
func (m *MarketService) GetMarket(ctx context.Context, id exchange.MarketId) (exchange.Market, error) {
	var res marketView
	err := m.cli.view(ctx, "get_market", map[string]any{"market_id": uint64(id)}, &res)
	if err != nil {
		return exchange.Market{}, err
	}
	return fromMarketView(res), nil
}

func (m *MarketService) GetMarkets(ctx context.Context) ([]exchange.Market, error) {
	var res []marketView
	if err := m.cli.view(ctx, "get_markets", nil, &res); err != nil {
		return nil, err
	}
	return lo.Map(res, func(item marketView, index int) exchange.Market {
		return fromMarketView(item)
	}), nil
}

// GetOrderbook https://docs.api.spin.fi/perp/#get_orderbook
func (m *MarketService) GetOrderbook(ctx context.Context, req exchange.GetOrderbookReq) (exchange.Orderbook, error) {
	args := map[string]any{"market_id": uint64(req.MarketId)}
	if req.Limit > 0 {
		args["limit"] = req.Limit
	}
	var res orderbookView
	if err := m.cli.view(ctx, "get_orderbook", args, &res); err != nil {
		return exchange.Orderbook{}, err
	}
	return exchange.Orderbook{
		MarketId:  req.MarketId,
		AskOrders: fromLevelViews(res.AskOrders),
		BidOrders: fromLevelViews(res.BidOrders),
	}, nil
}

func (m *MarketService) SubscribeBookL1(ctx context.Context, id exchange.MarketId) (<-chan exchange.BookL1, error) {
	return subscribeBookL1(ctx, m.wsURL, id)
}
