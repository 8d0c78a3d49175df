package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chainbal/internal/application"
	"chainbal/internal/bootstrap"
	"chainbal/internal/config"
	"chainbal/internal/domain"
	"chainbal/internal/infrastructure/history"
	"chainbal/internal/infrastructure/kafka"
	"chainbal/internal/infrastructure/rediscache"
)

var version = "dev"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	closeLog := bootstrap.Logging(cfg, "logs/watcher.log")
	defer closeLog()

	shutdownTracing := bootstrap.Tracing(context.Background(), cfg, "chainbal-watcher", version)
	defer shutdownTracing()

	querier, err := bootstrap.Querier(cfg, nil)
	if err != nil {
		slog.Error("rpc error", "err", err)
		os.Exit(1)
	}

	store, err := history.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		slog.Error("db error", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	deps := application.WatcherDeps{
		History:  store,
		Observer: watchObserver{},
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Network: cfg.NativeSymbol,
		})
		if err != nil {
			slog.Error("kafka error", "err", err)
			os.Exit(1)
		}
		defer producer.Close()
		deps.Writer = producer
	}
	if cfg.RedisAddr != "" {
		// the API caches snapshots in the same redis; drop them on change
		cache, err := rediscache.New(querier, rediscache.Config{Addr: cfg.RedisAddr, TTL: cfg.CacheTTL})
		if err != nil {
			slog.Warn("redis invalidation disabled", "err", err)
		} else {
			defer cache.Close()
			deps.Cache = cache
		}
	}

	watcher, err := application.NewWatcher(querier, deps, application.WatcherConfig{
		Addresses:    cfg.WatchAddresses,
		PollInterval: cfg.PollInterval,
		Workers:      cfg.WatchWorkers,
	})
	if err != nil {
		slog.Error("watcher error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(cfg.WatchAddresses) == 0 {
		slog.Warn("WATCH_ADDRESSES is empty; only the chain head is recorded")
	}
	slog.Info("watcher started",
		"rpc", cfg.RPCURL,
		"addresses", len(cfg.WatchAddresses),
		"interval", cfg.PollInterval,
		"kafka", deps.Writer != nil,
	)
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("watcher stopped", "err", err)
	}
}

type watchObserver struct{}

func (watchObserver) OnHead(head domain.ChainHead) {
	slog.Debug("chain head", "best", head.BestNumber, "finalized", head.FinalizedNumber)
}

func (watchObserver) OnPoll(watched, changed, failed int) {
	slog.Info("watcher poll",
		"watched", watched,
		"changed", changed,
		"failed", failed,
	)
}
