package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ProjectAnchor/internal/api"
	"ProjectAnchor/internal/auth"
	"ProjectAnchor/internal/config"
	"ProjectAnchor/internal/contract"
	"ProjectAnchor/internal/ledger"
	"ProjectAnchor/internal/observability/metrics"
	"ProjectAnchor/internal/registry"
	"ProjectAnchor/internal/web3/provider"
	"ProjectAnchor/pkg/logger"
)

// main 是 anchord 守护进程的入口。
func main() {
	configPath := flag.String("config", "", "配置文件路径，默认读取 $ANCHOR_CONFIG 或 configs/anchor.yaml")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("anchord 运行失败: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	if configPath == "" {
		configPath = config.ResolvePath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	backend, db, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	m := metrics.New()
	reg := registry.New(backend,
		registry.WithObserver(m),
		registry.WithAuditLogger(logger.Audit()),
	)
	handler := contract.NewHandler(reg)

	chains, err := provider.NewRegistry(ctx, cfg.Web3)
	if err != nil {
		return err
	}
	defer chains.Close()

	clock, err := buildClock(cfg.Ledger, backend, chains)
	if err != nil {
		return err
	}
	host := ledger.NewHost(handler, clock, cfg.Ledger.ChainID)

	if cfg.Registry.AutoInstantiate {
		if err := host.Bootstrap(ctx, cfg.Registry.Admin); err != nil {
			return err
		}
	}

	opts := []api.Option{
		api.WithMetrics(m),
		api.WithDefaultSender(cfg.Auth.Operator),
		api.WithTimeouts(cfg.Server.ReadTimeout.Std(), cfg.Server.WriteTimeout.Std(), cfg.Server.ShutdownTimeout.Std()),
		api.WithAuth(auth.NewService(authConfig(cfg.Auth))),
	}

	if cfg.Bridge.Enabled {
		b, err := newBridge(ctx, cfg, host, chains, db, m)
		if err != nil {
			return err
		}
		defer b.Close()

		if _, err := b.service.Resume(ctx); err != nil {
			logger.L().Warn("恢复未完成回执失败", slog.Any("error", err))
		}

		processorCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := b.processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("桥接处理器异常退出", slog.Any("error", err))
			}
		}()
		opts = append(opts, api.WithBridge(b.service))
	}

	logger.L().Info("anchord 启动",
		slog.String("config", configPath),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("clock", cfg.Ledger.Clock),
		slog.String("chain_id", cfg.Ledger.ChainID),
		slog.Bool("bridge", cfg.Bridge.Enabled),
	)

	server := api.NewServer(cfg.Server.Address, host, opts...)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("API 服务退出: %w", err)
	}
	return nil
}

func authConfig(cfg config.AuthConfig) auth.Config {
	mode := auth.ModeDisabled
	if cfg.Enabled {
		mode = auth.ModeStatic
	}
	return auth.Config{
		Mode:     mode,
		Operator: cfg.Operator,
		Tokens:   cfg.Tokens,
		ReadOnly: cfg.ReadOnly,
	}
}
