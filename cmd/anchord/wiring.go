package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"ProjectAnchor/internal/bridge"
	"ProjectAnchor/internal/config"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/ledger"
	"ProjectAnchor/internal/observability/alerting"
	"ProjectAnchor/internal/observability/metrics"
	"ProjectAnchor/internal/storage"
	"ProjectAnchor/internal/storage/memory"
	"ProjectAnchor/internal/storage/mysql"
	"ProjectAnchor/internal/storage/redis"
	"ProjectAnchor/internal/web3/provider"
	"ProjectAnchor/pkg/anchorclient"
	"ProjectAnchor/pkg/logger"
)

// openBackend 按驱动建立注册表存储。使用 MySQL 时同时返回连接池供回执存储复用。
func openBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, *sql.DB, error) {
	switch storage.Driver(cfg.Driver) {
	case storage.DriverMemory:
		return memory.New(), nil, nil
	case storage.DriverMySQL:
		kv, err := mysql.OpenKVBackend(ctx, mysqlConfig(cfg.MySQL))
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.DB(), nil
	case storage.DriverRedis:
		kv, err := redis.NewKVBackend(ctx, redis.Config{
			Address:    cfg.Redis.Address,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			Prefix:     cfg.Redis.Prefix,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			return nil, nil, err
		}
		return kv, nil, nil
	default:
		return nil, nil, xerrors.New(xerrors.CodeInvalidArgument, "未知的存储驱动", xerrors.WithMetadata("driver", cfg.Driver))
	}
}

func mysqlConfig(cfg config.MySQLConfig) mysql.Config {
	return mysql.Config{
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime.Std(),
	}
}

func buildClock(cfg config.LedgerConfig, backend storage.Backend, chains *provider.Registry) (ledger.Clock, error) {
	if cfg.Clock != "chain" {
		return ledger.NewSequenceClock(backend), nil
	}
	client, ok := chains.Client(cfg.Chain)
	if !ok {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "ledger.chain 未在链配置中定义", xerrors.WithMetadata("chain", cfg.Chain))
	}
	return ledger.NewChainClock(client), nil
}

type bridgeRuntime struct {
	service   *bridge.Service
	processor *bridge.Processor
	queue     bridge.Queue
	store     bridge.Store
	ownsDB    *sql.DB
}

// Close 关闭队列与回执存储。
func (b *bridgeRuntime) Close() error {
	err := b.service.Close()
	if b.ownsDB != nil {
		if cerr := b.ownsDB.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func newBridge(ctx context.Context, cfg *config.Config, host *ledger.Host, chains *provider.Registry, db *sql.DB, m *metrics.Metrics) (*bridgeRuntime, error) {
	bc := cfg.Bridge
	networks := bridge.NewNetworks(bc.Networks)
	endpoint, err := networks.Resolve(bc.Network)
	if err != nil {
		return nil, err
	}

	rt := &bridgeRuntime{}
	switch bc.ReceiptStore {
	case "mysql":
		if db == nil {
			db, err = mysql.Open(ctx, mysqlConfig(cfg.Storage.MySQL))
			if err != nil {
				return nil, err
			}
			rt.ownsDB = db
		}
		store, err := bridge.NewMySQLStore(db)
		if err != nil {
			return nil, err
		}
		rt.store = store
	default:
		rt.store = bridge.NewMemoryStore()
	}

	queue, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.queue = queue

	submitter, verifier, err := buildSubmitter(cfg, host, chains, endpoint)
	if err != nil {
		_ = queue.Close()
		return nil, err
	}

	rt.service = bridge.NewService(rt.store, queue,
		bridge.WithMaxAttempts(bc.MaxAttempts),
		bridge.WithNetwork(bc.Network, endpoint),
		bridge.WithVerifier(verifier),
	)
	rt.processor = bridge.NewProcessor(submitter, rt.store, queue, queue,
		bridge.WithWorkerCount(bc.Workers),
		bridge.WithProcessorLogger(logger.Named("bridge")),
		bridge.WithAlertDispatcher(buildAlerts(cfg.Alerting)),
		bridge.WithObserver(m),
	)
	return rt, nil
}

func buildQueue(ctx context.Context, cfg *config.Config) (bridge.Queue, error) {
	qc := cfg.Bridge.Queue
	switch qc.Driver {
	case "redis":
		address := qc.URL
		if address == "" {
			address = cfg.Storage.Redis.Address
		}
		return bridge.NewRedisQueue(ctx, bridge.RedisQueueConfig{
			Address:  address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Queue:    qc.Name,
		})
	case "rabbitmq":
		return bridge.NewRabbitMQQueue(bridge.RabbitMQConfig{
			URL:      qc.URL,
			Queue:    qc.Name,
			Prefetch: qc.Prefetch,
			Durable:  true,
		})
	default:
		return bridge.NewMemoryQueue(qc.Size), nil
	}
}

func buildSubmitter(cfg *config.Config, host *ledger.Host, chains *provider.Registry, endpoint string) (bridge.Submitter, bridge.Verifier, error) {
	bc := cfg.Bridge
	switch bc.Submitter {
	case "http":
		client, err := anchorclient.NewClient(endpoint, &http.Client{Timeout: bc.Timeout.Std()})
		if err != nil {
			return nil, nil, err
		}
		client.SetAccessToken(bc.Token)
		return bridge.NewHTTPSubmitter(client), bridge.NewRemoteVerifier(client), nil
	case "dry_run":
		return bridge.DryRunSubmitter{}, host.Handler(), nil
	case "evm":
		address, ok := chains.AnchorContract(bc.EVMChain)
		if !ok {
			return nil, nil, xerrors.New(xerrors.CodeInvalidArgument, "链配置缺少 anchor_contract", xerrors.WithMetadata("chain", bc.EVMChain))
		}
		submitter, err := bridge.NewEVMSubmitter(bc.EVMChain, address)
		if err != nil {
			return nil, nil, err
		}
		return submitter, host.Handler(), nil
	default:
		return bridge.NewHostSubmitter(host, cfg.Auth.Operator), host.Handler(), nil
	}
}

func buildAlerts(cfg config.AlertingConfig) alerting.Dispatcher {
	notifiers := []alerting.Notifier{&alerting.LogNotifier{Logger: logger.Audit()}}
	if cfg.Enabled && cfg.Webhook != "" {
		timeout := cfg.Timeout.Std()
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		notifiers = append(notifiers, alerting.NewWebhookNotifier(cfg.Webhook, timeout))
	}
	return alerting.NewFanout(notifiers...)
}
