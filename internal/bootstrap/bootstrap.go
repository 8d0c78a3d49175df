// Package bootstrap holds the wiring shared by the chainbal binaries.
package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"time"

	"chainbal/internal/application"
	"chainbal/internal/config"
	"chainbal/internal/infrastructure/logging"
	"chainbal/internal/infrastructure/price"
	"chainbal/internal/infrastructure/subrpc"
	"chainbal/internal/infrastructure/telemetry"
)

// Logging installs the slog default. defaultFile is used when LOG_FILE is
// unset; pass "" to log to stdout only. The returned func closes the file.
func Logging(cfg config.Config, defaultFile string) func() {
	return initLogging(cfg, defaultFile, nil)
}

// ConsoleLogging is Logging for command line tools: console output goes to
// console and only LOG_FILE, if set, is written besides it.
func ConsoleLogging(cfg config.Config, console io.Writer) func() {
	return initLogging(cfg, "", console)
}

func initLogging(cfg config.Config, defaultFile string, console io.Writer) func() {
	file := cfg.LogFile
	if file == "" {
		file = defaultFile
	}
	writer, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       file,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Console:    console,
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
		return func() {}
	}
	return func() {
		if writer != nil {
			_ = writer.Close()
		}
	}
}

// Tracing starts the tracer provider. The returned func flushes it.
func Tracing(ctx context.Context, cfg config.Config, service, version string) func() {
	shutdown, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    service,
		ServiceVersion: version,
		Endpoint:       cfg.OtelEndpoint,
	})
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("tracing shutdown error", "err", err)
		}
	}
}

// Querier builds the node client and the query orchestration on top of it.
func Querier(cfg config.Config, observer subrpc.Observer) (*application.Querier, error) {
	client, err := subrpc.NewClient(subrpc.Config{
		URL:      cfg.RPCURL,
		Timeout:  cfg.RPCTimeout,
		Observer: observer,
	})
	if err != nil {
		return nil, err
	}

	var prices application.PriceSource
	if priceClient := price.NewClient(price.Config{
		URL:     cfg.PriceURL,
		Timeout: cfg.PriceTimeout,
		IDs:     cfg.PriceIDs,
	}); priceClient != nil {
		prices = priceClient
	}

	return application.NewQuerier(client, prices, application.QuerierConfig{
		Native:    application.Token{Symbol: cfg.NativeSymbol, Decimals: cfg.NativeDecimals},
		Asset:     application.Token{Symbol: cfg.AssetSymbol, Decimals: cfg.AssetDecimals},
		AssetID:   cfg.AssetID,
		Precision: cfg.DisplayPrecision,
	})
}
