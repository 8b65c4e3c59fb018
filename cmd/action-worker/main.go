package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/formwork/platform/internal/app"
	"github.com/formwork/platform/internal/infra"
	"github.com/formwork/platform/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	engine := app.NewEngine(app.Deps{
		Pool:         pool,
		Logger:       logger,
		InlineBudget: cfg.InlineActionBudget,
	})

	wcfg := worker.DefaultConfig()
	wcfg.PollInterval = cfg.WorkerPollInterval
	wcfg.Burst = cfg.WorkerBurst
	wcfg.MaxAttempts = cfg.WorkerMaxAttempts

	w := worker.New(engine.Queue, engine.Executor, engine.Results, wcfg, logger)
	w.Run(ctx)

	logger.Info("worker stopped gracefully")
	return nil
}
