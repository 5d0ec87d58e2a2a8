package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/app/walletledger"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/config"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.SetupLogger(cfg.Env, os.Stdout)

	logger.Info("starting wallet-ledger", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := walletledger.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize wallet-ledger", sl.Err(err))
		os.Exit(1)
	}
	if err := app.Run(ctx); err != nil {
		logger.Error("wallet-ledger stopped with error", sl.Err(err))
		os.Exit(1)
	}
}
