package redis

import (
	"context"
	"encoding/hex"
	stdErrors "errors"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/storage"
	"ProjectAnchor/pkg/logger"
)

// Config 描述 Redis 连接参数。
type Config struct {
	Address    string
	Password   string
	DB         int
	Prefix     string
	MaxRetries int
}

// KVBackend 将键值对保存为 Redis 字符串。所有写事务都会递增同一个修订号键，
// 并在 WATCH 该键的前提下提交，因此任意并发写入都会使其他事务重试。
type KVBackend struct {
	client     *redis.Client
	prefix     string
	revision   string
	maxRetries int
}

// NewKVBackend 建立 Redis 连接。
func NewKVBackend(ctx context.Context, cfg Config) (*KVBackend, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 Redis 失败")
	}
	return NewKVBackendWithClient(client, cfg.Prefix, cfg.MaxRetries), nil
}

// NewKVBackendWithClient 复用已有客户端。
func NewKVBackendWithClient(client *redis.Client, prefix string, maxRetries int) *KVBackend {
	if prefix == "" {
		prefix = "anchor:kv:"
	}
	if maxRetries <= 0 {
		maxRetries = 8
	}
	return &KVBackend{
		client:     client,
		prefix:     prefix,
		revision:   prefix + "__rev",
		maxRetries: maxRetries,
	}
}

// Client 暴露底层客户端，供队列等组件复用连接。
func (b *KVBackend) Client() *redis.Client {
	return b.client
}

// View 实现 storage.Backend。
func (b *KVBackend) View(ctx context.Context, fn func(storage.Reader) error) error {
	return fn(&reader{ctx: ctx, cmd: b.client, backend: b})
}

// Update 实现 storage.Backend。
func (b *KVBackend) Update(ctx context.Context, fn func(storage.Txn) error) error {
	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		err := b.client.Watch(ctx, func(tx *redis.Tx) error {
			t := &txn{reader: reader{ctx: ctx, cmd: tx, backend: b}, writes: make(map[string][]byte)}
			if err := fn(t); err != nil {
				return err
			}
			if len(t.writes) == 0 {
				return nil
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for key, value := range t.writes {
					pipe.Set(ctx, key, value, 0)
				}
				pipe.Incr(ctx, b.revision)
				return nil
			})
			return err
		}, b.revision)
		if err == nil {
			return nil
		}
		if !stdErrors.Is(err, redis.TxFailedErr) {
			if _, ok := xerrors.From(err); ok {
				return err
			}
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "Redis 事务执行失败")
		}
		logger.L().Debug("Redis 事务冲突，准备重试", slog.Int("attempt", attempt))
	}
	return xerrors.New(xerrors.CodeStorageFailure, "Redis 事务冲突重试次数耗尽")
}

// Close 关闭连接。
func (b *KVBackend) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

func (b *KVBackend) key(raw []byte) string {
	return b.prefix + hex.EncodeToString(raw)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type reader struct {
	ctx     context.Context
	cmd     getter
	backend *KVBackend
}

func (r *reader) Get(key []byte) ([]byte, bool, error) {
	value, err := r.cmd.Get(r.ctx, r.backend.key(key)).Bytes()
	if err != nil {
		if stdErrors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取 Redis 键失败")
	}
	return value, true, nil
}

type txn struct {
	reader
	writes map[string][]byte
}

func (t *txn) Get(key []byte) ([]byte, bool, error) {
	if value, ok := t.writes[t.backend.key(key)]; ok {
		return value, true, nil
	}
	return t.reader.Get(key)
}

func (t *txn) Set(key, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	t.writes[t.backend.key(key)] = buf
	return nil
}

var _ storage.Backend = (*KVBackend)(nil)
