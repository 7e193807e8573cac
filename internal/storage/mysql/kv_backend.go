package mysql

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"time"

	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/storage"
)

const (
	selectValueSQL = `SELECT v FROM anchor_kv WHERE k = ?`
	lockValueSQL   = `SELECT v FROM anchor_kv WHERE k = ? FOR UPDATE`
	upsertValueSQL = `INSERT INTO anchor_kv (k, v, updated_at) VALUES (?, ?, ?)
        ON DUPLICATE KEY UPDATE v = VALUES(v), updated_at = VALUES(updated_at)`
)

// KVBackend 将键值对保存在 anchor_kv 表中。Update 在单个数据库事务内执行，
// 读取使用 SELECT ... FOR UPDATE 加锁，保证计数器与条目写入的原子性。
type KVBackend struct {
	db *sql.DB
}

// NewKVBackend 基于已有连接池创建存储。
func NewKVBackend(db *sql.DB) *KVBackend {
	return &KVBackend{db: db}
}

// OpenKVBackend 建立连接、执行迁移并返回存储。
func OpenKVBackend(ctx context.Context, cfg Config) (*KVBackend, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &KVBackend{db: db}, nil
}

// DB 暴露底层连接池，供回执存储等组件复用。
func (b *KVBackend) DB() *sql.DB {
	return b.db
}

// View 实现 storage.Backend。
func (b *KVBackend) View(ctx context.Context, fn func(storage.Reader) error) error {
	tx, err := b.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "开启只读事务失败")
	}
	if err := fn(&sqlTxn{ctx: ctx, tx: tx, query: selectValueSQL}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "提交只读事务失败")
	}
	return nil
}

// Update 实现 storage.Backend。
func (b *KVBackend) Update(ctx context.Context, fn func(storage.Txn) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "开启事务失败")
	}
	if err := fn(&sqlTxn{ctx: ctx, tx: tx, query: lockValueSQL}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "提交事务失败")
	}
	return nil
}

// Close 关闭连接池。
func (b *KVBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

type sqlTxn struct {
	ctx   context.Context
	tx    *sql.Tx
	query string
}

func (t *sqlTxn) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	if err := t.tx.QueryRowContext(t.ctx, t.query, key).Scan(&value); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取键值失败")
	}
	return value, true, nil
}

func (t *sqlTxn) Set(key, value []byte) error {
	if _, err := t.tx.ExecContext(t.ctx, upsertValueSQL, key, value, time.Now().Unix()); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入键值失败")
	}
	return nil
}

var _ storage.Backend = (*KVBackend)(nil)
