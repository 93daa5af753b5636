package spin

import (
	"context"

	"github.com/KNICEX/spin-perp/internal/service/exchange"
)

var _ exchange.AccountService = (*AccountService)(nil)

type AccountService struct {
	cli *rpcClient
}

func NewAccountService(cli *rpcClient) *AccountService {
	return &AccountService{cli: cli}
}

// GetBalances https://docs.api.spin.fi/perp/#get_balance
func (s *AccountService) GetBalances(ctx context.Context, accountId string) (string, error) {
	var balance string
	err := s.cli.view(ctx, "get_balances", map[string]any{"account_id": accountId}, &balance)
	if err != nil {
		return "", err
	}
	return balance, nil
}

// GetBaseCurrency https://docs.api.spin.fi/perp/#get_base_currency
func (s *AccountService) GetBaseCurrency(ctx context.Context) (exchange.Currency, error) {
	var res currencyView
	if err := s.cli.view(ctx, "get_base_currency", nil, &res); err != nil {
		return exchange.Currency{}, err
	}
	return fromCurrencyView(res), nil
}
