package paper

import (
	"context"

	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/KNICEX/spin-perp/pkg/decimalx"
)

// GetBalances 按 base currency 精度放大
func (e *Exchange) GetBalances(ctx context.Context, accountId string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return decimalx.FromDecimal(e.balances[accountId], e.baseCurrency.Decimals)
}

func (e *Exchange) GetBaseCurrency(ctx context.Context) (exchange.Currency, error) {
	return e.baseCurrency, nil
}
