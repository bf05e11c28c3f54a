package main

import (
	"context"
	"os/signal"
	"syscall"

	"bourse/internal/api"
	"bourse/internal/config"
	"bourse/internal/engine"
	"bourse/internal/ledger"
	"bourse/internal/logging"
	"bourse/internal/metrics"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewLogger(cfg)

	// Provision accounts before the venue serves any request.
	accounts := ledger.New(cfg.Market.Instrument, cfg.Market.Quote)
	for _, account := range cfg.Accounts {
		for symbol, amount := range account.Holdings {
			accounts.Deposit(account.ID, symbol, decimal.NewFromFloat(amount))
		}
	}

	registry := metrics.Init(logger)
	eng := engine.New(accounts, logger)
	srv := api.New(cfg, eng, registry, logger)
	eng.SetReporter(srv.Hub())

	go srv.Run(ctx)
	// Block on running the server.
	<-ctx.Done()
}
