package ioc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KNICEX/spin-perp/internal/repo"
	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/KNICEX/spin-perp/internal/service/exchange/paper"
	"github.com/KNICEX/spin-perp/internal/service/exchange/spin"
	"github.com/KNICEX/spin-perp/pkg/decimalx"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var nodeURLs = map[string]string{
	"testnet": "https://rpc.testnet.near.org",
	"mainnet": "https://rpc.mainnet.near.org",
}

type spinConfig struct {
	AccountId  string        `mapstructure:"account_id"`
	ContractId string        `mapstructure:"contract_id"`
	Network    string        `mapstructure:"network"`
	RPCURL     string        `mapstructure:"rpc_url"`
	Websocket  string        `mapstructure:"websocket"`
	Finality   string        `mapstructure:"finality"`
	RetryCount int           `mapstructure:"retry_count"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// AccountId 当前操作的 NEAR 账户
func AccountId() string {
	return viper.GetString("spin.account_id")
}

// ExchangeMode spin 直连合约, paper 使用内存模拟盘
func ExchangeMode() string {
	mode := viper.GetString("exchange.mode")
	if mode == "" {
		return "spin"
	}
	return mode
}

func InitExchange(db *gorm.DB) exchange.Service {
	switch mode := ExchangeMode(); mode {
	case "spin":
		return InitSpinService()
	case "paper":
		return InitPaperExchange(db)
	default:
		panic(fmt.Errorf("unknown exchange mode %q", mode))
	}
}

// InitSpinService 交易签名不在本程序内实现, 只读接入
func InitSpinService() *spin.Service {
	cfg := spinConfig{
		Network:  "testnet",
		Finality: "final",
		Timeout:  10 * time.Second,
	}
	if err := viper.UnmarshalKey("spin", &cfg); err != nil {
		panic(err)
	}
	if cfg.ContractId == "" {
		panic("spin.contract_id is required")
	}
	if cfg.RPCURL == "" {
		url, ok := nodeURLs[cfg.Network]
		if !ok {
			panic(fmt.Errorf("unknown near network %q, set spin.rpc_url", cfg.Network))
		}
		cfg.RPCURL = url
	}

	slog.Info("spin service", "contract", cfg.ContractId, "rpc", cfg.RPCURL, "ws", cfg.Websocket)
	return spin.NewService(spin.Config{
		ContractId: cfg.ContractId,
		RPCURL:     cfg.RPCURL,
		WSURL:      cfg.Websocket,
		Finality:   cfg.Finality,
		Timeout:    cfg.Timeout,
		RetryCount: cfg.RetryCount,
	}, nil)
}

// InitPaperExchange 订单号接着流水库里最大的 paper 订单号分配
func InitPaperExchange(db *gorm.DB) *paper.Exchange {
	type Level struct {
		Side     string `mapstructure:"side"`
		Price    string `mapstructure:"price"`
		Quantity string `mapstructure:"quantity"`
	}
	type Config struct {
		Balance   string  `mapstructure:"balance"`
		Liquidity []Level `mapstructure:"liquidity"`
	}

	cfg := Config{
		Balance: "1000",
		Liquidity: []Level{
			{Side: "ask", Price: "1.2", Quantity: "50"},
			{Side: "ask", Price: "1.1", Quantity: "20"},
			{Side: "bid", Price: "0.9", Quantity: "20"},
			{Side: "bid", Price: "0.8", Quantity: "50"},
		},
	}
	if err := viper.UnmarshalKey("exchange.paper", &cfg); err != nil {
		panic(err)
	}

	maxId, err := repo.NewOrderRepo(db).MaxOrderId(context.Background(), "paper")
	if err != nil {
		panic(fmt.Errorf("paper order id seed: %w", err))
	}

	usdc := exchange.Currency{Symbol: "USDC", Address: "usdc.fakes.testnet", Decimals: 6}
	market := exchange.Market{
		Id:            1,
		Symbol:        "NEAR-PERP",
		BaseCurrency:  exchange.Currency{Symbol: "NEAR", Address: "wrap.testnet", Decimals: 24},
		QuoteCurrency: usdc,
		Limits: exchange.MarketLimits{
			TickSize:        lo.Must(decimalx.FromDecimal(decimalx.MustFromString("0.001"))),
			StepSize:        lo.Must(decimalx.FromDecimal(decimalx.MustFromString("0.1"))),
			MinBaseQuantity: lo.Must(decimalx.FromDecimal(decimalx.MustFromString("0.1"))),
		},
	}

	e := paper.New(AccountId(), usdc,
		paper.WithMarket(market),
		paper.WithBalance(AccountId(), decimalx.MustFromString(cfg.Balance)),
		paper.WithOrderIdSeed(maxId+1),
	)
	for _, l := range cfg.Liquidity {
		side := exchange.Side(l.Side)
		if !side.IsValid() {
			panic(fmt.Errorf("invalid paper liquidity side %q", l.Side))
		}
		if _, err := e.AddLiquidity(market.Id, side, decimalx.MustFromString(l.Price), decimalx.MustFromString(l.Quantity)); err != nil {
			panic(err)
		}
	}
	return e
}
