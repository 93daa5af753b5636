package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KNICEX/spin-perp/internal/metrics"
	"github.com/KNICEX/spin-perp/internal/schedule"
	"github.com/KNICEX/spin-perp/ioc"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func initViper() {
	// --config=./config/xxx.yaml
	file := pflag.String("config", "./config/config.dev.yaml", "specify config file")
	pflag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Errorf("load .env: %w", err))
	}

	// SPIN_SPIN_ACCOUNT_ID -> spin.account_id
	viper.SetEnvPrefix("spin")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigFile(*file)
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %s \n", err))
	}
}

func main() {
	initViper()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(); err != nil {
		slog.Error("walkthrough failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if addr := viper.GetString("metrics.addr"); addr != "" {
		srv := metrics.Serve(addr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	db := ioc.InitDB()
	svc := ioc.InitExchange(db)
	task := ioc.InitWalkthroughTask(svc, db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return schedule.Run(ctx, task)
}
