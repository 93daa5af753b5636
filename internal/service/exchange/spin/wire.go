package spin

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/samber/lo"
)

// 合约 JSON 结构, u128 / u64 均以字符串传输

type currencyView struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int32  `json:"decimals"`
}

type marketView struct {
	Id     uint64       `json:"id"`
	Symbol string       `json:"symbol"`
	Base   currencyView `json:"base"`
	Quote  currencyView `json:"quote"`
	Limits struct {
		TickSize         string `json:"tick_size"`
		StepSize         string `json:"step_size"`
		MinBaseQuantity  string `json:"min_base_quantity"`
		MaxBaseQuantity  string `json:"max_base_quantity"`
		MinQuoteQuantity string `json:"min_quote_quantity"`
		MaxQuoteQuantity string `json:"max_quote_quantity"`
	} `json:"limits"`
}

type levelView struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type orderbookView struct {
	AskOrders []levelView `json:"ask_orders"`
	BidOrders []levelView `json:"bid_orders"`
}

type orderView struct {
	Id            string `json:"id"`
	Price         string `json:"price"`
	Quantity      string `json:"quantity"`
	Remaining     string `json:"remaining"`
	OrderType     string `json:"o_type"` // Ask / Bid
	ClientOrderId uint32 `json:"client_order_id"`
	PostOnly      bool   `json:"post_only"`
	CreatedAt     string `json:"created_at"` // 纳秒
}

type positionView struct {
	MarketId     uint64 `json:"market_id"`
	Side         string `json:"side"` // Long / Short
	BaseQuantity string `json:"base_quantity"`
	EntryPrice   string `json:"entry_price"`
	Upnl         string `json:"upnl"`
}

type positionsView struct {
	MarginRatio json.Number    `json:"margin_ratio"`
	Positions   []positionView `json:"positions"`
}

type placeOrderArgs struct {
	MarketId      uint64 `json:"market_id"`
	Price         string `json:"price"`
	Quantity      string `json:"quantity"`
	MarketOrder   bool   `json:"market_order"`
	ClientOrderId uint32 `json:"client_order_id,omitempty"`
	PostOnly      bool   `json:"post_only"`
}

type cancelOrderArgs struct {
	MarketId uint64 `json:"market_id"`
	OrderId  string `json:"order_id"`
}

func fromCurrencyView(c currencyView) exchange.Currency {
	return exchange.Currency{
		Symbol:   c.Symbol,
		Address:  c.Address,
		Decimals: c.Decimals,
	}
}

func fromMarketView(m marketView) exchange.Market {
	return exchange.Market{
		Id:            exchange.MarketId(m.Id),
		Symbol:        m.Symbol,
		BaseCurrency:  fromCurrencyView(m.Base),
		QuoteCurrency: fromCurrencyView(m.Quote),
		Limits: exchange.MarketLimits{
			TickSize:         m.Limits.TickSize,
			StepSize:         m.Limits.StepSize,
			MinBaseQuantity:  m.Limits.MinBaseQuantity,
			MaxBaseQuantity:  m.Limits.MaxBaseQuantity,
			MinQuoteQuantity: m.Limits.MinQuoteQuantity,
			MaxQuoteQuantity: m.Limits.MaxQuoteQuantity,
		},
	}
}

func fromLevelViews(levels []levelView) []exchange.BookLevel {
	return lo.Map(levels, func(item levelView, index int) exchange.BookLevel {
		return exchange.BookLevel{Price: item.Price, Quantity: item.Quantity}
	})
}

func fromOrderView(marketId exchange.MarketId, o orderView) exchange.Order {
	return exchange.Order{
		Id:                exchange.OrderId(o.Id),
		MarketId:          marketId,
		Side:              exchange.Side(strings.ToLower(o.OrderType)),
		Price:             o.Price,
		Quantity:          o.Quantity,
		RemainingQuantity: o.Remaining,
		ClientOrderId:     o.ClientOrderId,
		PostOnly:          o.PostOnly,
		CreatedAt:         parseNanos(o.CreatedAt),
	}
}

func fromPositionsView(p positionsView) exchange.Positions {
	return exchange.Positions{
		MarginRatio: p.MarginRatio.String(),
		Positions: lo.Map(p.Positions, func(item positionView, index int) exchange.Position {
			return exchange.Position{
				MarketId:     exchange.MarketId(item.MarketId),
				Side:         exchange.PositionSide(strings.ToLower(item.Side)),
				BaseQuantity: item.BaseQuantity,
				EntryPrice:   item.EntryPrice,
				Upnl:         item.Upnl,
			}
		}),
	}
}

func parseNanos(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// parseOrderId 合约返回的订单号可能是字符串也可能是数字
func parseOrderId(raw json.RawMessage) (exchange.OrderId, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return exchange.OrderId(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return exchange.OrderId(n.String()), nil
}
