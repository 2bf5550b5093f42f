package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"las/internal/platform/config"
	"las/internal/platform/httpserver"
	"las/internal/platform/logger"
)

// main wires the ledger and serves the operational router. The ledger
// transport is mounted by the API layer on top of app.Ledger.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "las: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	return httpserver.New(cfg.Server, a.Router, log).Serve(ctx)
}
