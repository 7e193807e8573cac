package ledger

import (
	"context"
	"encoding/binary"
	"sync"

	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/storage"
	"ProjectAnchor/internal/web3"
)

// Clock 提供区块高度。
type Clock interface {
	// Next 返回本次执行使用的高度。
	Next(ctx context.Context) (uint64, error)
	// Current 返回最近一次提供的高度，不推进。
	Current(ctx context.Context) (uint64, error)
}

var heightKey = storage.NamespacedKey("ledger", []byte("height"))

// SequenceClock 在存储中持久化一个单调递增的高度，每次执行推进 1。
type SequenceClock struct {
	backend storage.Backend
}

// NewSequenceClock 创建基于存储的序列时钟。
func NewSequenceClock(backend storage.Backend) *SequenceClock {
	return &SequenceClock{backend: backend}
}

// Next 实现 Clock。
func (c *SequenceClock) Next(ctx context.Context) (uint64, error) {
	var next uint64
	err := c.backend.Update(ctx, func(tx storage.Txn) error {
		current, err := readHeight(tx)
		if err != nil {
			return err
		}
		next = current + 1
		return tx.Set(heightKey, binary.BigEndian.AppendUint64(nil, next))
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Current 实现 Clock。
func (c *SequenceClock) Current(ctx context.Context) (uint64, error) {
	var current uint64
	err := c.backend.View(ctx, func(rd storage.Reader) error {
		h, err := readHeight(rd)
		current = h
		return err
	})
	return current, err
}

func readHeight(rd storage.Reader) (uint64, error) {
	raw, found, err := rd.Get(heightKey)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	if len(raw) != 8 {
		return 0, xerrors.New(xerrors.CodeStorageFailure, "区块高度记录已损坏", xerrors.WithRetryable(false))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// ChainClock 使用外部链的最新区块高度。
type ChainClock struct {
	client web3.Client

	mu   sync.Mutex
	last uint64
}

// NewChainClock 创建基于链客户端的时钟。
func NewChainClock(client web3.Client) *ChainClock {
	return &ChainClock{client: client}
}

// Next 实现 Clock。链高度回退时沿用上一次的高度。
func (c *ChainClock) Next(ctx context.Context) (uint64, error) {
	height, err := c.client.LatestHeight(ctx)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeChainFailure, err, "获取链高度失败")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if height < c.last {
		height = c.last
	}
	c.last = height
	return height, nil
}

// Current 实现 Clock。
func (c *ChainClock) Current(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if last != 0 {
		return last, nil
	}
	return c.Next(ctx)
}

var (
	_ Clock = (*SequenceClock)(nil)
	_ Clock = (*ChainClock)(nil)
)
