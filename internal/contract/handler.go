package contract

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/digest"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/registry"
)

// Handler 将外部消息分发给注册表。
type Handler struct {
	registry *registry.Registry
}

// NewHandler 创建边界处理器。
func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{registry: reg}
}

// Registry 返回底层注册表。
func (h *Handler) Registry() *registry.Registry {
	return h.registry
}

// Instantiate 写入配置，管理员取 msg.Admin，缺省为调用方。
func (h *Handler) Instantiate(ctx context.Context, _ Env, info MessageInfo, msg InstantiateMsg) (Response, error) {
	admin := info.Sender
	if msg.Admin != nil && strings.TrimSpace(*msg.Admin) != "" {
		admin = strings.TrimSpace(*msg.Admin)
	}
	cfg, err := h.registry.Instantiate(ctx, admin)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	resp.add("action", "instantiate").add("admin", cfg.Admin)
	return resp, nil
}

// ValidateExecute 检查消息结构与摘要长度，不访问存储。
func ValidateExecute(msg ExecuteMsg) (anchor.Type, []byte, error) {
	typ, hash, err := msg.Variant()
	if err != nil {
		return 0, nil, err
	}
	if !digest.ValidLength(hash) {
		return 0, nil, xerrors.New(xerrors.CodeInvalidHashLength, "Hash must be exactly 32 bytes (SHA-256)")
	}
	return typ, hash, nil
}

// Execute 校验并登记摘要。
func (h *Handler) Execute(ctx context.Context, env Env, info MessageInfo, msg ExecuteMsg) (Response, error) {
	typ, hash, err := ValidateExecute(msg)
	if err != nil {
		return Response{}, err
	}
	entry, err := h.registry.Register(ctx, typ, hash, info.Sender, env.BlockHeight)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	resp.add("action", typ.Action()).
		add("hash", entry.HashHex).
		add("registrant", entry.Registrant).
		add("block_height", strconv.FormatUint(entry.RegisteredAt, 10))
	return resp, nil
}

// Query 执行只读查询并返回 JSON 编码结果。
func (h *Handler) Query(ctx context.Context, _ Env, msg QueryMsg) ([]byte, error) {
	if n := msg.count(); n != 1 {
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "query message must set exactly one variant, got %d", n)
	}
	switch {
	case msg.VerifyRoot != nil:
		return h.verify(ctx, anchor.TypeRoot, msg.VerifyRoot.Hash)
	case msg.VerifyClaimScore != nil:
		return h.verify(ctx, anchor.TypeClaimScore, msg.VerifyClaimScore.Hash)
	case msg.VerifyEquationProof != nil:
		return h.verify(ctx, anchor.TypeEquationProof, msg.VerifyEquationProof.Hash)
	case msg.GetConfig != nil:
		cfg, err := h.registry.Config(ctx)
		if err != nil {
			return nil, err
		}
		return encode(anchor.ConfigResponse{Admin: cfg.Admin, TotalAnchors: cfg.TotalAnchors})
	default:
		typ, err := anchor.ParseType(msg.GetAnchor.AnchorType)
		if err != nil {
			return nil, err
		}
		return h.verify(ctx, typ, msg.GetAnchor.Hash)
	}
}

// Verify 是 verify_* 查询的类型化版本。
func (h *Handler) Verify(ctx context.Context, typ anchor.Type, hash []byte) (anchor.VerifyResponse, error) {
	if !digest.ValidLength(hash) {
		return anchor.VerifyResponse{}, xerrors.New(xerrors.CodeInvalidHashLength, "Hash must be exactly 32 bytes (SHA-256)")
	}
	entry, found, err := h.registry.Lookup(ctx, typ, hash)
	if err != nil {
		return anchor.VerifyResponse{}, err
	}
	return anchor.VerifyResponse{
		Exists:  found,
		HashHex: hex.EncodeToString(hash),
		Entry:   entry,
	}, nil
}

func (h *Handler) verify(ctx context.Context, typ anchor.Type, hash []byte) ([]byte, error) {
	resp, err := h.Verify(ctx, typ, hash)
	if err != nil {
		return nil, err
	}
	return encode(resp)
}

func encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "编码查询结果失败")
	}
	return raw, nil
}
