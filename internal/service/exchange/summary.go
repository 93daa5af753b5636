package exchange

import (
	"fmt"

	"github.com/KNICEX/spin-perp/pkg/decimalx"
	"github.com/shopspring/decimal"
)

// AccountSummary 账户概览, 均已换算为可读数值
type AccountSummary struct {
	Token       string  `json:"token"`
	Balance     float64 `json:"balance"`
	MarginRatio float64 `json:"margin_ratio"`
	Equity      float64 `json:"equity"`
	Upnl        float64 `json:"upnl"`
}

// Summarize 权益 = 合约内余额 + 所有仓位未实现盈亏
func Summarize(balance string, base Currency, positions Positions) (AccountSummary, error) {
	bal, err := decimalx.ToNumber(balance, base.Decimals)
	if err != nil {
		return AccountSummary{}, fmt.Errorf("balance: %w", err)
	}

	var upnl float64
	for _, p := range positions.Positions {
		v, err := decimalx.ToNumber(p.Upnl)
		if err != nil {
			return AccountSummary{}, fmt.Errorf("market %d upnl: %w", p.MarketId, err)
		}
		upnl += v
	}

	var marginRatio float64
	if positions.MarginRatio != "" {
		mr, err := decimal.NewFromString(positions.MarginRatio)
		if err != nil {
			return AccountSummary{}, fmt.Errorf("margin ratio: %w", err)
		}
		marginRatio = mr.InexactFloat64()
	}

	return AccountSummary{
		Token:       base.Symbol,
		Balance:     bal,
		MarginRatio: marginRatio,
		Equity:      bal + upnl,
		Upnl:        upnl,
	}, nil
}
