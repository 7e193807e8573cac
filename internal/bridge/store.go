package bridge

import (
	"context"

	xerrors "ProjectAnchor/internal/errors"
)

// Store 抽象了回执的持久化接口。
type Store interface {
	Create(ctx context.Context, receipt *Receipt) error
	Get(ctx context.Context, id string) (*Receipt, error)
	// Claim 将回执标记为 submitted 并递增尝试次数。
	Claim(ctx context.Context, id string) (*Receipt, error)
	MarkConfirmed(ctx context.Context, id string, conf Confirmation) error
	// MarkFailed 记录失败；terminal 为 true 时回执不再被领取。
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, terminal bool) error
	List(ctx context.Context, opts ListOptions) ([]*Receipt, error)
	// Stats 统计符合过滤条件的回执，忽略分页参数。
	Stats(ctx context.Context, opts ListOptions) (ReceiptStats, error)
	Close() error
}
