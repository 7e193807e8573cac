package ledger

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"sync"

	"ProjectAnchor/internal/contract"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/registry"
	"ProjectAnchor/pkg/logger"
)

// Host 串行执行写消息，读消息可并发。
type Host struct {
	handler *contract.Handler
	clock   Clock
	chainID string

	mu sync.RWMutex
}

// NewHost 构造宿主账本。
func NewHost(handler *contract.Handler, clock Clock, chainID string) *Host {
	return &Host{handler: handler, clock: clock, chainID: chainID}
}

// Handler 返回边界处理器。
func (h *Host) Handler() *contract.Handler {
	return h.handler
}

// ChainID 返回账本标识。
func (h *Host) ChainID() string {
	return h.chainID
}

// Instantiate 以 sender 身份初始化注册表。
func (h *Host) Instantiate(ctx context.Context, sender string, msg contract.InstantiateMsg) (contract.Response, error) {
	if err := requireSender(sender); err != nil {
		return contract.Response{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	env, err := h.nextEnv(ctx)
	if err != nil {
		return contract.Response{}, err
	}
	return h.handler.Instantiate(ctx, env, contract.MessageInfo{Sender: sender}, msg)
}

// Execute 以 sender 身份执行注册消息。
func (h *Host) Execute(ctx context.Context, sender string, msg contract.ExecuteMsg) (contract.Response, error) {
	if err := requireSender(sender); err != nil {
		return contract.Response{}, err
	}
	// 结构错误的消息不占用区块高度。
	if _, _, err := contract.ValidateExecute(msg); err != nil {
		return contract.Response{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	env, err := h.nextEnv(ctx)
	if err != nil {
		return contract.Response{}, err
	}
	resp, err := h.handler.Execute(ctx, env, contract.MessageInfo{Sender: sender}, msg)
	if err != nil {
		logger.L().Debug("执行消息失败",
			slog.Uint64("block_height", env.BlockHeight),
			slog.String("sender", sender),
			slog.Any("error", err),
		)
		return contract.Response{}, err
	}
	return resp, nil
}

// Query 执行只读查询。
func (h *Host) Query(ctx context.Context, msg contract.QueryMsg) ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	height, err := h.clock.Current(ctx)
	if err != nil {
		return nil, err
	}
	return h.handler.Query(ctx, contract.Env{BlockHeight: height, ChainID: h.chainID}, msg)
}

// Height 返回当前区块高度。
func (h *Host) Height(ctx context.Context) (uint64, error) {
	return h.clock.Current(ctx)
}

// Bootstrap 在注册表尚未初始化时以 admin 身份完成初始化，已初始化则直接返回。
func (h *Host) Bootstrap(ctx context.Context, admin string) error {
	initialized, err := h.handler.Registry().Initialized(ctx)
	if err != nil {
		return err
	}
	if initialized {
		return nil
	}
	_, err = h.Instantiate(ctx, admin, contract.InstantiateMsg{})
	if stdErrors.Is(err, registry.ErrAlreadyInitialized) {
		return nil
	}
	if err == nil {
		logger.L().Info("注册表已初始化", slog.String("admin", admin))
	}
	return err
}

func (h *Host) nextEnv(ctx context.Context) (contract.Env, error) {
	height, err := h.clock.Next(ctx)
	if err != nil {
		return contract.Env{}, err
	}
	return contract.Env{BlockHeight: height, ChainID: h.chainID}, nil
}

func requireSender(sender string) error {
	if strings.TrimSpace(sender) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "调用方身份不能为空")
	}
	return nil
}
