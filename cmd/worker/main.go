package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BogdanMod/lego-bot-sub002/internal/application/factories/infrastructure"
	"github.com/BogdanMod/lego-bot-sub002/internal/config"
	"github.com/BogdanMod/lego-bot-sub002/internal/consumer"
	"github.com/BogdanMod/lego-bot-sub002/internal/deadletter"
	"github.com/BogdanMod/lego-bot-sub002/internal/infrastructure/postgres"
	"github.com/BogdanMod/lego-bot-sub002/internal/infrastructure/redis"
	"github.com/BogdanMod/lego-bot-sub002/internal/ops"
	"github.com/BogdanMod/lego-bot-sub002/internal/processor"

	"github.com/google/uuid"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Infrastructure
	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	redisCli, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	consumerName := newConsumerName()
	stream := redis.NewStream(redisCli, cfg.Stream.Events, cfg.Stream.Group, consumerName)
	notifier := redis.NewNotifier(redisCli)

	// Dependencies
	txManager := postgres.NewTxManager(pgPool)
	entityRepo := postgres.NewEntityRepository(pgPool)
	ledgerRepo := postgres.NewLedgerRepository(pgPool)

	proc := processor.New(txManager, entityRepo, ledgerRepo, notifier, logger)
	router := deadletter.New(cfg.Stream.DeadLetter, cfg.Stream.Events, stream, logger)

	loop := consumer.New(stream, proc, router, consumer.Config{
		BatchSize:         cfg.Stream.BatchSize,
		Block:             cfg.Stream.BlockTimeout(),
		MaxRetries:        cfg.Stream.MaxRetries,
		RetryBackoff:      cfg.Stream.RetryBackoff(),
		BatchErrorPause:   cfg.Stream.BatchErrorPause(),
		DrainTimeout:      cfg.Stream.DrainTimeout(),
		FailFastPermanent: cfg.Stream.FailFastPermErr,
	}, logger)

	// Ops server (health + metrics)
	go func() {
		handler := ops.NewRouter(map[string]ops.Check{
			"postgres": pgPool.Ping,
			"redis": func(ctx context.Context) error {
				return redisCli.Ping(ctx).Err()
			},
		})
		logger.Info("ops server listening", "addr", cfg.Ops.Addr)
		if err := http.ListenAndServe(cfg.Ops.Addr, handler); err != nil {
			logger.Error("ops server stopped", "error", err)
		}
	}()

	logger.Info("event worker started",
		"app", cfg.App.Name,
		"stream", cfg.Stream.Events,
		"group", cfg.Stream.Group,
		"consumer", consumerName,
	)

	if err := loop.Run(ctx); err != nil {
		logger.Error("consumer loop failed", "error", err)
		os.Exit(1)
	}

	logger.Info("worker exited")
}

// newConsumerName derives a name unique to this process so the group can
// track per-consumer deliveries. The uuid suffix guards against pid reuse
// across container restarts.
func newConsumerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
