package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead_triage_backend/internal/triage"
	"lead_triage_backend/internal/triage/classifier"
	"lead_triage_backend/platform/config"
	"lead_triage_backend/platform/db"
	"lead_triage_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting triage worker",
		"env", cfg.Env,
		"queue", cfg.GetStreamQueue(),
		"concurrency", cfg.GetTriageConcurrency(),
		"classifier", cfg.GetClassifierKind(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	cls, err := classifier.New(cfg)
	if err != nil {
		log.Error("failed to initialize classifier", "error", err)
		panic("failed to initialize classifier: " + err.Error())
	}

	worker, err := triage.NewWorker(cfg, pool, cls, log)
	if err != nil {
		log.Error("failed to initialize triage worker", "error", err)
		panic("failed to initialize triage worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("triage worker stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		log.Warn(name+" failed, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
