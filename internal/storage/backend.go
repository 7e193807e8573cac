package storage

import (
	"context"
	"encoding/binary"

	xerrors "ProjectAnchor/internal/errors"
)

// Reader 提供事务内的只读访问。
type Reader interface {
	// Get 返回 key 对应的值；不存在时 found 为 false 且 err 为 nil。
	Get(key []byte) (value []byte, found bool, err error)
}

// Txn 在 Reader 基础上提供写入能力。写入在 Update 回调成功返回后才可见。
type Txn interface {
	Reader
	Set(key, value []byte) error
}

// Backend 抽象宿主提供的持久化键值存储。
type Backend interface {
	// View 在一致性快照上执行只读回调。
	View(ctx context.Context, fn func(Reader) error) error
	// Update 执行读写回调；回调返回错误时丢弃全部写入。
	Update(ctx context.Context, fn func(Txn) error) error
	Close() error
}

// Driver 标识存储实现。
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverMySQL  Driver = "mysql"
	DriverRedis  Driver = "redis"
)

// ErrClosed 表示存储已关闭。
var ErrClosed = xerrors.New(xerrors.CodeStorageFailure, "storage backend closed", xerrors.WithRetryable(false))

// NamespacedKey 按 2 字节大端长度前缀 + 命名空间 + 原始键 的格式拼接存储键，
// 保证不同命名空间的键不会相互覆盖。
func NamespacedKey(namespace string, key []byte) []byte {
	out := make([]byte, 0, 2+len(namespace)+len(key))
	out = binary.BigEndian.AppendUint16(out, uint16(len(namespace)))
	out = append(out, namespace...)
	out = append(out, key...)
	return out
}
