package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"las/internal/ledger/lock"
	ledgermetrics "las/internal/ledger/metrics"
	"las/internal/ledger/ports"
	"las/internal/ledger/register"
	"las/internal/ledger/service"
	"las/internal/ledger/store"
	"las/internal/platform/config"
	"las/internal/platform/metrics"
	"las/internal/platform/ops"
	"las/internal/platform/postgres"
	"las/internal/platform/redis"
	"las/pkg/platform/sentinel"
)

// app holds the wired process.
type app struct {
	Ledger  *service.Service
	Router  http.Handler
	closers []func() error
}

// build picks Postgres or the in-memory store by DATABASE_URL, and Redis or
// process-local locks by REDIS_URL.
func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	reg := metrics.NewRegistry()
	ledgerMetrics := ledgermetrics.New(reg)
	checks := map[string]ops.Check{}

	var (
		runner ports.TxRunner
		reader service.Reader
	)
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, db.Close)
		pg := store.NewPostgres(db, store.WithTxTimeout(cfg.Server.TxTimeout))
		if err := pg.Migrate(ctx); err != nil {
			a.Close(log)
			return nil, err
		}
		runner, reader = pg, pg
		checks["postgres"] = pg.Ping
		log.Info("ledger store ready", "backend", "postgres")
	} else {
		mem := store.NewInMemory()
		runner, reader = mem, mem
		log.Warn("DATABASE_URL not set, ledger data is kept in memory")
	}

	locker, err := buildLocker(ctx, cfg, log, a, checks)
	if err != nil {
		a.Close(log)
		return nil, err
	}

	if cfg.SeedDemo {
		if err := seedDemo(ctx, runner, log); err != nil {
			a.Close(log)
			return nil, err
		}
	}

	handler, err := register.New(runner,
		register.WithLogger(log),
		register.WithMetrics(ledgerMetrics),
	)
	if err != nil {
		a.Close(log)
		return nil, err
	}
	a.Ledger, err = service.New(handler, locker, reader,
		service.WithLogger(log),
		service.WithMetrics(ledgerMetrics),
	)
	if err != nil {
		a.Close(log)
		return nil, err
	}
	a.Router = ops.NewRouter(reg.Handler(), checks)
	return a, nil
}

func buildLocker(ctx context.Context, cfg config.Config, log *slog.Logger, a *app, checks map[string]ops.Check) (service.Locker, error) {
	client, err := redis.Open(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Warn("REDIS_URL not set, subject locks are process-local")
		return lock.NewMemory(cfg.Lock.WaitTimeout), nil
	}
	a.closers = append(a.closers, client.Close)
	checks["redis"] = client.Check
	log.Info("subject locks ready", "backend", "redis", "expire", cfg.Lock.Expire)
	return lock.NewRedis(client.Client,
		lock.WithKeyPrefix(cfg.Lock.KeyPrefix),
		lock.WithExpire(cfg.Lock.Expire),
		lock.WithRetryInterval(cfg.Lock.RetryInterval),
		lock.WithWaitTimeout(cfg.Lock.WaitTimeout),
		lock.WithAutoRenewal(cfg.Lock.AutoRenewal),
		lock.WithLogger(log),
	), nil
}

// seedDemo provisions the demo tenant in one transaction. An existing demo
// user means a previous boot already seeded.
func seedDemo(ctx context.Context, runner ports.TxRunner, log *slog.Logger) error {
	err := runner.RunInTx(ctx, func(ctx context.Context, st ports.LedgerStore) error {
		seeder, ok := st.(store.Seeder)
		if !ok {
			return errors.New("ledger store does not support seeding")
		}
		demo, err := store.SeedDemo(ctx, seeder)
		if err != nil {
			return err
		}
		log.Info("seeded demo data",
			"instance_id", demo.Instance.ID,
			"user_id", demo.User.ID,
			"internal_liability_type_id", demo.Internal.ID,
			"external_liability_type_id", demo.External.ID,
		)
		return nil
	})
	if errors.Is(err, sentinel.ErrConflict) {
		log.Info("demo data already present")
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close(log *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
