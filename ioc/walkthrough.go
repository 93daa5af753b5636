package ioc

import (
	"time"

	"github.com/KNICEX/spin-perp/internal/repo"
	"github.com/KNICEX/spin-perp/internal/schedule"
	"github.com/KNICEX/spin-perp/internal/service/exchange"
	"github.com/KNICEX/spin-perp/internal/service/walkthrough"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

func InitWalkthroughTask(svc exchange.Service, db *gorm.DB) schedule.Task {
	type Config struct {
		MarketId      uint64        `mapstructure:"market_id"`
		Trade         bool          `mapstructure:"trade"`
		AskPrice      float64       `mapstructure:"ask_price"`
		AskQuantity   float64       `mapstructure:"ask_quantity"`
		ClientOrderId uint32        `mapstructure:"client_order_id"`
		Listen        time.Duration `mapstructure:"listen"`
	}

	cfg := Config{
		MarketId:      1,
		AskPrice:      1,
		AskQuantity:   10,
		ClientOrderId: 1000,
		Listen:        30 * time.Second,
	}
	if err := viper.UnmarshalKey("walkthrough", &cfg); err != nil {
		panic(err)
	}

	return walkthrough.NewTask(walkthrough.Config{
		Exchange:      ExchangeMode(),
		AccountId:     AccountId(),
		MarketId:      exchange.MarketId(cfg.MarketId),
		Trade:         cfg.Trade,
		AskPrice:      cfg.AskPrice,
		AskQuantity:   cfg.AskQuantity,
		ClientOrderId: cfg.ClientOrderId,
		Listen:        cfg.Listen,
	}, svc, repo.NewOrderRepo(db), repo.NewSnapshotRepo(db))
}
