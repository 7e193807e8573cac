package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/digest"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/storage"
	"ProjectAnchor/pkg/logger"
)

var configKey = []byte("config")

var (
	// ErrAlreadyAnchored 表示该摘要已在同一命名空间登记，注册不产生任何状态变化。
	ErrAlreadyAnchored = xerrors.New(xerrors.CodeAlreadyAnchored, "hash already anchored")
	// ErrAlreadyInitialized 表示配置单例已存在。
	ErrAlreadyInitialized = xerrors.New(xerrors.CodeAlreadyInitialized, "registry already instantiated")
	// ErrNotInitialized 表示尚未执行初始化。
	ErrNotInitialized = xerrors.New(xerrors.CodeInitializationFailure, "registry not initialized")
)

// Observer 在注册成功后收到通知，用于指标统计。
type Observer interface {
	Anchored(entry anchor.Entry)
}

// Registry 是锚定注册表。
type Registry struct {
	backend  storage.Backend
	audit    *slog.Logger
	observer Observer
}

// Option 定义可选配置。
type Option func(*Registry)

// WithAuditLogger 指定审计日志输出。
func WithAuditLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.audit = l
	}
}

// WithObserver 注册成功回调。
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// New 创建注册表。
func New(backend storage.Backend, opts ...Option) *Registry {
	r := &Registry{backend: backend}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Instantiate 写入配置单例，管理员由调用方决定，计数器归零。
func (r *Registry) Instantiate(ctx context.Context, admin string) (anchor.Config, error) {
	admin = strings.TrimSpace(admin)
	if admin == "" {
		return anchor.Config{}, xerrors.New(xerrors.CodeInvalidArgument, "admin 不能为空")
	}
	cfg := anchor.Config{Admin: admin, TotalAnchors: 0}
	err := r.backend.Update(ctx, func(tx storage.Txn) error {
		_, found, err := tx.Get(configKey)
		if err != nil {
			return err
		}
		if found {
			return ErrAlreadyInitialized
		}
		return putJSON(tx, configKey, cfg)
	})
	if err != nil {
		return anchor.Config{}, err
	}
	r.auditLogger().Info("instantiate", slog.String("admin", admin))
	return cfg, nil
}

// Register 在 typ 命名空间登记 hash。hash 必须恰好 32 字节；同一命名空间重复登记
// 返回 ErrAlreadyAnchored，计数器不会重复累加。
func (r *Registry) Register(ctx context.Context, typ anchor.Type, hash []byte, registrant string, height uint64) (anchor.Entry, error) {
	if !typ.Valid() {
		return anchor.Entry{}, xerrors.New(xerrors.CodeUnknownAnchorType, "Unknown anchor type")
	}
	d, err := digest.FromBytes(hash)
	if err != nil {
		return anchor.Entry{}, err
	}

	entry := anchor.Entry{
		HashHex:      d.Hex(),
		AnchorType:   typ,
		RegisteredAt: height,
		Registrant:   registrant,
	}
	key := entryKey(typ, d)
	err = r.backend.Update(ctx, func(tx storage.Txn) error {
		var cfg anchor.Config
		found, err := getJSON(tx, configKey, &cfg)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotInitialized
		}
		_, exists, err := tx.Get(key)
		if err != nil {
			return err
		}
		if exists {
			return xerrors.New(xerrors.CodeAlreadyAnchored, "hash already anchored",
				xerrors.WithMetadata("anchor_type", typ.String()),
				xerrors.WithMetadata("hash", entry.HashHex))
		}
		if err := putJSON(tx, key, entry); err != nil {
			return err
		}
		cfg.TotalAnchors++
		return putJSON(tx, configKey, cfg)
	})
	if err != nil {
		return anchor.Entry{}, err
	}

	r.auditLogger().Info(typ.Action(),
		slog.String("hash", entry.HashHex),
		slog.String("registrant", registrant),
		slog.Uint64("block_height", height),
	)
	if r.observer != nil {
		r.observer.Anchored(entry)
	}
	return entry, nil
}

// Lookup 查询 typ 命名空间中的 hash。未登记时返回 (nil, false, nil)。
func (r *Registry) Lookup(ctx context.Context, typ anchor.Type, hash []byte) (*anchor.Entry, bool, error) {
	if !typ.Valid() {
		return nil, false, xerrors.New(xerrors.CodeUnknownAnchorType, "Unknown anchor type")
	}
	d, err := digest.FromBytes(hash)
	if err != nil {
		return nil, false, err
	}
	var entry anchor.Entry
	var found bool
	err = r.backend.View(ctx, func(rd storage.Reader) error {
		var err error
		found, err = getJSON(rd, entryKey(typ, d), &entry)
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return &entry, true, nil
}

// Config 返回配置单例。
func (r *Registry) Config(ctx context.Context) (anchor.Config, error) {
	var cfg anchor.Config
	var found bool
	err := r.backend.View(ctx, func(rd storage.Reader) error {
		var err error
		found, err = getJSON(rd, configKey, &cfg)
		return err
	})
	if err != nil {
		return anchor.Config{}, err
	}
	if !found {
		return anchor.Config{}, ErrNotInitialized
	}
	return cfg, nil
}

// Initialized 判断配置单例是否已写入。
func (r *Registry) Initialized(ctx context.Context) (bool, error) {
	_, err := r.Config(ctx)
	if err == nil {
		return true, nil
	}
	if xerrors.CodeOf(err) == xerrors.CodeInitializationFailure {
		return false, nil
	}
	return false, err
}

func (r *Registry) auditLogger() *slog.Logger {
	if r.audit != nil {
		return r.audit
	}
	return logger.Audit()
}

func entryKey(typ anchor.Type, d digest.Digest) []byte {
	return storage.NamespacedKey(typ.Namespace(), d[:])
}

func getJSON(rd storage.Reader, key []byte, out any) (bool, error) {
	raw, found, err := rd.Get(key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析存储记录失败", xerrors.WithRetryable(false))
	}
	return true, nil
}

func putJSON(tx storage.Txn, key []byte, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "编码存储记录失败", xerrors.WithRetryable(false))
	}
	return tx.Set(key, raw)
}
