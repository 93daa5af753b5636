package spin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/go-resty/resty/v2"
)

var _ exchange.Service = (*Service)(nil)

// ErrReadOnly 未配置 Signer 时无法调用修改状态的合约方法
var ErrReadOnly = fmt.Errorf("spin: no signer configured: %w", exchange.ErrReadOnly)

// Signer 签名并提交 function call 交易, 返回合约方法的 JSON 返回值
type Signer interface {
	FunctionCall(ctx context.Context, contractId, method string, args []byte) (json.RawMessage, error)
}

type Config struct {
	ContractId string
	RPCURL     string
	WSURL      string
	Finality   string // final / optimistic
	Timeout    time.Duration
	RetryCount int
}

type Service struct {
	marketSvc   *MarketService
	accountSvc  *AccountService
	orderSvc    *OrderService
	positionSvc *PositionService
}

// NewService signer 可以为 nil, 此时只能调用 view 方法
func NewService(cfg Config, signer Signer) *Service {
	cli := newRPCClient(cfg)
	return &Service{
		marketSvc:   NewMarketService(cli, cfg.WSURL),
		accountSvc:  NewAccountService(cli),
		orderSvc:    NewOrderService(cli, signer),
		positionSvc: NewPositionService(cli),
	}
}

func (s *Service) MarketService() exchange.MarketService {
	return s.marketSvc
}

func (s *Service) AccountService() exchange.AccountService {
	return s.accountSvc
}

func (s *Service) OrderService() exchange.OrderService {
	return s.orderSvc
}

func (s *Service) PositionService() exchange.PositionService {
	return s.positionSvc
}

func newRPCClient(cfg Config) *rpcClient {
	finality := cfg.Finality
	if finality == "" {
		finality = "final"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cli := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &rpcClient{
		http:       cli,
		url:        cfg.RPCURL,
		contractId: cfg.ContractId,
		finality:   finality,
	}
}
