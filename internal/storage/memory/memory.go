// Package memory 提供基于内存 map 的存储实现，用于测试与单机开发。
package memory

import (
	"context"
	"sync"

	"ProjectAnchor/internal/storage"
)

// Backend 使用读写锁保护的 map 保存数据。
type Backend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New 创建内存存储。
func New() *Backend {
	return &Backend{data: make(map[string][]byte)}
}

// View 实现 storage.Backend。
func (b *Backend) View(ctx context.Context, fn func(storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return storage.ErrClosed
	}
	return fn(&txn{backend: b})
}

// Update 实现 storage.Backend。写入先缓存在事务内，回调成功后一次性落入 map。
func (b *Backend) Update(ctx context.Context, fn func(storage.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return storage.ErrClosed
	}
	tx := &txn{backend: b, writes: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	for key, value := range tx.writes {
		b.data[key] = value
	}
	return nil
}

// Len 返回已保存的键数量。
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Close 实现 storage.Backend。
func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

type txn struct {
	backend *Backend
	writes  map[string][]byte
}

func (t *txn) Get(key []byte) ([]byte, bool, error) {
	if t.writes != nil {
		if value, ok := t.writes[string(key)]; ok {
			return cloneBytes(value), true, nil
		}
	}
	value, ok := t.backend.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(value), true, nil
}

func (t *txn) Set(key, value []byte) error {
	t.writes[string(key)] = cloneBytes(value)
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ storage.Backend = (*Backend)(nil)
