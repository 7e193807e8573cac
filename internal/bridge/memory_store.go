package bridge

import (
	"context"
	"sort"
	"sync"
	"time"

	xerrors "ProjectAnchor/internal/errors"
)

// MemoryStore 以内存方式保存回执，用于单机部署与测试。
type MemoryStore struct {
	mu       sync.RWMutex
	receipts map[string]*Receipt
	now      func() time.Time
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{receipts: make(map[string]*Receipt), now: time.Now}
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, receipt *Receipt) error {
	if receipt == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "receipt 不能为空")
	}
	if receipt.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "回执 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.receipts[receipt.ID]; ok {
		return ErrReceiptConflict
	}
	now := m.now().UnixMilli()
	if receipt.CreatedAt == 0 {
		receipt.CreatedAt = now
	}
	receipt.UpdatedAt = now
	m.receipts[receipt.ID] = cloneReceipt(receipt)
	return nil
}

// Get 返回回执。
func (m *MemoryStore) Get(_ context.Context, id string) (*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.receipts[id]
	if !ok {
		return nil, ErrReceiptNotFound
	}
	return cloneReceipt(r), nil
}

// Claim 实现 Store 接口。
func (m *MemoryStore) Claim(_ context.Context, id string) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return nil, ErrReceiptNotFound
	}
	switch r.Status {
	case StatusConfirmed, StatusDryRun:
		return cloneReceipt(r), ErrReceiptSettled
	case StatusSubmitted:
		return cloneReceipt(r), ErrReceiptConflict
	}
	if r.Attempts >= r.MaxAttempts {
		return cloneReceipt(r), ErrReceiptExhausted
	}
	r.Status = StatusSubmitted
	r.Attempts++
	r.LastError = ""
	r.ErrorCode = ""
	r.UpdatedAt = m.now().UnixMilli()
	return cloneReceipt(r), nil
}

// MarkConfirmed 记录提交结果。
func (m *MemoryStore) MarkConfirmed(_ context.Context, id string, conf Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return ErrReceiptNotFound
	}
	r.Status = conf.Status
	if r.Status == "" {
		r.Status = StatusConfirmed
	}
	r.TxRef = conf.TxRef
	r.OnChainHash = conf.OnChainHash
	r.BlockHeight = conf.BlockHeight
	r.Registrant = conf.Registrant
	r.LastError = ""
	r.ErrorCode = ""
	r.UpdatedAt = m.now().UnixMilli()
	return nil
}

// MarkFailed 标记回执失败。
func (m *MemoryStore) MarkFailed(_ context.Context, id string, code xerrors.Code, lastError string, terminal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return ErrReceiptNotFound
	}
	r.Status = StatusFailed
	if terminal && r.Attempts < r.MaxAttempts {
		r.Attempts = r.MaxAttempts
	}
	r.LastError = lastError
	r.ErrorCode = string(code)
	r.UpdatedAt = m.now().UnixMilli()
	return nil
}

// List 返回符合条件的回执。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Receipt, 0, len(m.receipts))
	for _, r := range m.receipts {
		if !matchesListFilters(r, opts) {
			continue
		}
		results = append(results, cloneReceipt(r))
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if opts.Order == SortByUpdatedAsc {
			a, b = b, a
		}
		if a.UpdatedAt == b.UpdatedAt {
			if a.CreatedAt == b.CreatedAt {
				return a.ID > b.ID
			}
			return a.CreatedAt > b.CreatedAt
		}
		return a.UpdatedAt > b.UpdatedAt
	})

	if opts.Offset >= len(results) {
		return []*Receipt{}, nil
	}
	results = results[opts.Offset:]
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 实现 Store 接口。
func (m *MemoryStore) Stats(_ context.Context, opts ListOptions) (ReceiptStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	var stats ReceiptStats
	for _, r := range m.receipts {
		if matchesListFilters(r, opts) {
			stats.add(r)
		}
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
