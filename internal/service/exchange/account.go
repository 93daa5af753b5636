package exchange

import "context"

type AccountService interface {
	// GetBalances 合约内基础货币余额, 按 base currency 的 Decimals 放大
	GetBalances(ctx context.Context, accountId string) (string, error)
	GetBaseCurrency(ctx context.Context) (Currency, error)
}
