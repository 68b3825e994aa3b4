package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/market-gateway/internal/config"
	"github.com/rickgao/market-gateway/internal/dispatch"
	"github.com/rickgao/market-gateway/internal/httpapi"
	"github.com/rickgao/market-gateway/internal/live"
	"github.com/rickgao/market-gateway/internal/monitor"
	"github.com/rickgao/market-gateway/internal/persist"
	"github.com/rickgao/market-gateway/internal/registry"
	"github.com/rickgao/market-gateway/internal/snapshot"
	"github.com/rickgao/market-gateway/internal/store"
	"github.com/rickgao/market-gateway/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/gateway.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting gateway",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"storage_backend", cfg.Storage.Backend,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Open durable storage
	persister, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer closeStorage()

	// Cache store with snapshot restore
	cache := store.New(store.Config{
		SweepInterval: cfg.Store.SweepInterval,
	}, persister, logger)
	if err := cache.Start(ctx); err != nil {
		logger.Error("failed to start cache store", "error", err)
		os.Exit(1)
	}

	// Provider registry
	reg, err := registry.New(ctx, persister, logger)
	if err != nil {
		logger.Error("failed to create provider registry", "error", err)
		os.Exit(1)
	}
	logger.Info("provider registry ready",
		"providers", len(reg.List()),
		"enabled", len(reg.ListEnabled()),
	)

	// Request dispatcher
	dispatcher := dispatch.New(dispatch.Config{
		CandidateTimeout:  cfg.Dispatcher.CandidateTimeout,
		RateLimitCooldown: cfg.Dispatcher.RateLimitCooldown,
		TopAssetsTTL:      cfg.Dispatcher.TopAssetsTTL,
		AssetTTL:          cfg.Dispatcher.AssetTTL,
		HistoryTTL:        cfg.Dispatcher.HistoryTTL,
		SearchTTL:         cfg.Dispatcher.SearchTTL,
	}, cache, reg, dispatch.DefaultFactory(), logger)

	// Shared snapshot fed by both the poller and the live stream
	snap := snapshot.New()

	// Polling monitor
	mon := monitor.New(monitor.Config{
		AssetIDs:    cfg.Monitor.AssetIDs,
		Interval:    cfg.Monitor.Interval,
		Concurrency: cfg.Monitor.Concurrency,
	}, dispatcher, snap, nil, logger)
	if err := mon.Start(ctx); err != nil {
		logger.Error("failed to start monitor", "error", err)
		os.Exit(1)
	}

	// Live update channel
	channel := live.NewChannel(live.Config{
		URL:                cfg.Live.URL,
		AssetIDs:           cfg.Monitor.AssetIDs,
		ReconnectBaseDelay: cfg.Live.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Live.ReconnectMaxDelay,
		BufferSize:         cfg.Live.BufferSize,
	}, snap, logger)
	if err := channel.Connect(ctx); err != nil {
		logger.Error("failed to start live channel", "error", err)
		os.Exit(1)
	}

	// HTTP API
	server := httpapi.New(httpapi.Config{
		Port:            cfg.Server.Port,
		InstanceID:      cfg.Instance.ID,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, dispatcher, reg, cache, channel, snap, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("failed to start http server", "error", err)
		os.Exit(1)
	}

	logger.Info("gateway running",
		"instance_id", cfg.Instance.ID,
		"port", cfg.Server.Port,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
	if err := channel.Close(shutdownCtx); err != nil {
		logger.Error("live channel shutdown failed", "error", err)
	}
	if err := mon.Stop(shutdownCtx); err != nil {
		logger.Error("monitor shutdown failed", "error", err)
	}
	if err := cache.Stop(shutdownCtx); err != nil {
		logger.Error("cache store shutdown failed", "error", err)
	}

	logger.Info("gateway stopped")
}

// openStorage builds the configured persistence backend. The returned
// closer is a no-op for the file backend.
func openStorage(ctx context.Context, cfg *config.GatewayConfig, logger *slog.Logger) (persist.Persister, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		logger.Info("connecting to database",
			"host", cfg.Storage.Postgres.Host,
			"port", cfg.Storage.Postgres.Port,
			"database", cfg.Storage.Postgres.Name,
		)
		pg, err := persist.NewPostgres(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("database connected")
		return pg, pg.Close, nil
	default:
		f, err := persist.NewFile(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, err
		}
		return f, func() {}, nil
	}
}
