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
	"chainbal/internal/infrastructure/history"
	"chainbal/internal/infrastructure/rediscache"
	"chainbal/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	closeLog := bootstrap.Logging(cfg, "logs/balanced.log")
	defer closeLog()

	shutdownTracing := bootstrap.Tracing(context.Background(), cfg, "chainbal-balanced", version)
	defer shutdownTracing()

	metrics := httpapi.NewMetrics()
	querier, err := bootstrap.Querier(cfg, metrics)
	if err != nil {
		slog.Error("rpc error", "err", err)
		os.Exit(1)
	}

	var reader application.SnapshotReader = querier
	cached, err := rediscache.New(querier, rediscache.Config{
		Addr:     cfg.RedisAddr,
		TTL:      cfg.CacheTTL,
		Observer: metrics,
	})
	if err != nil {
		slog.Warn("redis cache disabled", "err", err)
	} else {
		reader = cached
		defer cached.Close()
	}

	store, err := history.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		slog.Error("db error", "err", err)
		os.Exit(1)
	}
	defer store.Close()
	if head, ok, err := store.LatestHead(context.Background()); err == nil && ok {
		metrics.OnHead(head)
	}

	server, err := httpapi.NewServer(httpapi.ServerConfig{RateLimit: cfg.RateLimit}, reader, store, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		slog.Error("http server error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("http server listening",
		"addr", cfg.HTTPAddr,
		"rpc", cfg.RPCURL,
		"cache", cfg.RedisAddr != "",
		"db", cfg.DBDriver,
	)
	if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("http server stopped", "err", err)
	}
}
