package bridge

import (
	"context"
	"log/slog"

	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/pkg/logger"
)

const resumePageSize = 100

// Resume 重新投递尚未结束的回执，用于进程重启后恢复持久化存储中的积压。
// 已提交但未回写结果的回执保持原状，需要人工核对。
func (s *Service) Resume(ctx context.Context) (int, error) {
	if s.store == nil || s.producer == nil {
		return 0, xerrors.New(xerrors.CodeInitializationFailure, "桥接服务未初始化")
	}
	republished := 0
	for offset := 0; ; offset += resumePageSize {
		page, err := s.store.List(ctx, buildListOptions([]ListOption{
			WithStatuses(StatusPending, StatusFailed),
			WithSortOrder(SortByUpdatedAsc),
			WithLimit(resumePageSize),
			WithOffset(offset),
		}))
		if err != nil {
			return republished, err
		}
		for _, receipt := range page {
			if receipt.Terminal() {
				continue
			}
			if err := s.producer.Publish(ctx, receipt.ID); err != nil {
				return republished, xerrors.Wrap(CodeBridgePublish, err, "恢复回执入队失败")
			}
			republished++
		}
		if len(page) < resumePageSize {
			break
		}
	}
	if republished > 0 {
		logger.L().Info("已恢复未完成的锚定回执", slog.Int("count", republished))
	}
	return republished, nil
}
