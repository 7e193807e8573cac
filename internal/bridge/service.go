package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ProjectAnchor/internal/digest"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/payload"
	"ProjectAnchor/pkg/logger"
)

const defaultMaxAttempts = 3

// Service 接收载荷、创建回执并投递到队列。
type Service struct {
	store       Store
	producer    Producer
	verifier    Verifier
	maxAttempts int
	network     string
	endpoint    string
}

// ServiceOption 定义可选配置。
type ServiceOption func(*Service)

// WithMaxAttempts 设置单个回执的最大提交次数。
func WithMaxAttempts(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithNetwork 记录回执所属的网络及端点。
func WithNetwork(name, endpoint string) ServiceOption {
	return func(s *Service) {
		s.network = name
		s.endpoint = endpoint
	}
}

// WithVerifier 指定校验回执时使用的注册表。
func WithVerifier(v Verifier) ServiceOption {
	return func(s *Service) {
		s.verifier = v
	}
}

// NewService 创建桥接服务。
func NewService(store Store, producer Producer, opts ...ServiceOption) *Service {
	s := &Service{
		store:       store,
		producer:    producer,
		maxAttempts: defaultMaxAttempts,
		network:     "local",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// AnchorMerkleRoot 封装 Merkle 根载荷并提交。
func (s *Service) AnchorMerkleRoot(ctx context.Context, rootHash string, leafCount uint64, tableHashes, previousRoot string) (*Receipt, error) {
	return s.AnchorSealed(ctx, payload.NewMerkleRoot(rootHash, leafCount, tableHashes, previousRoot))
}

// AnchorClaimScore 封装声明评分载荷并提交。
func (s *Service) AnchorClaimScore(ctx context.Context, claimID uint64, composite, entropy, density float64, support, contradict uint64, stability string) (*Receipt, error) {
	return s.AnchorSealed(ctx, payload.NewClaimScore(claimID, composite, entropy, density, support, contradict, stability))
}

// AnchorEquationProof 封装方程证明载荷并提交。
func (s *Service) AnchorEquationProof(ctx context.Context, name, equationHash, proofTreeHash, stability string, solvability, compression float64, dimensionalValid bool) (*Receipt, error) {
	return s.AnchorSealed(ctx, payload.NewEquationProof(name, equationHash, proofTreeHash, stability, solvability, compression, dimensionalValid))
}

// AnchorSealed 为已封装的载荷创建回执并入队。载荷摘要必须与字段一致。
func (s *Service) AnchorSealed(ctx context.Context, p payload.Sealed) (*Receipt, error) {
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "桥接服务未初始化")
	}
	if p == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "载荷不能为空")
	}
	if _, err := p.HashBytes(); err != nil {
		return nil, err
	}
	if !p.Verify() {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "载荷摘要与字段不一致",
			xerrors.WithMetadata("payload_hash", p.Hash()))
	}

	receipt := &Receipt{
		ID:          uuid.NewString(),
		AnchorType:  p.AnchorType(),
		PayloadKind: p.Kind(),
		PayloadHash: strings.ToLower(p.Hash()),
		Canonical:   p.Canonical(),
		Network:     s.network,
		Endpoint:    s.endpoint,
		Status:      StatusPending,
		MaxAttempts: s.maxAttempts,
	}
	if err := s.store.Create(ctx, receipt); err != nil {
		return nil, err
	}
	if err := s.producer.Publish(ctx, receipt.ID); err != nil {
		wrapped := xerrors.Wrap(CodeBridgePublish, err, fmt.Sprintf("回执 %s 入队失败", receipt.ID))
		if markErr := s.store.MarkFailed(ctx, receipt.ID, CodeBridgePublish, err.Error(), true); markErr != nil {
			logger.L().Error("回写入队失败状态出错", slog.Any("error", markErr), slog.String("receipt_id", receipt.ID))
		}
		return nil, wrapped
	}

	logger.Audit().Info("锚定请求已入队",
		slog.String("receipt_id", receipt.ID),
		slog.String("anchor_type", receipt.AnchorType.String()),
		slog.String("payload_hash", receipt.PayloadHash),
		slog.String("network", receipt.Network),
	)
	return receipt, nil
}

// Get 返回回执。
func (s *Service) Get(ctx context.Context, id string) (*Receipt, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "桥接服务未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合条件的回执。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Receipt, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "桥接服务未初始化")
	}
	return s.store.List(ctx, buildListOptions(opts))
}

// Stats 返回回执统计。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (ReceiptStats, error) {
	if s.store == nil {
		return ReceiptStats{}, xerrors.New(xerrors.CodeInitializationFailure, "桥接服务未初始化")
	}
	return s.store.Stats(ctx, buildListOptions(opts))
}

// Verify 判断回执对应的摘要是否已登记。演练回执只核对记录的链上摘要。
func (s *Service) Verify(ctx context.Context, receipt *Receipt) (bool, error) {
	if receipt == nil {
		return false, xerrors.New(xerrors.CodeInvalidArgument, "回执不能为空")
	}
	switch receipt.Status {
	case StatusDryRun:
		return receipt.OnChainHash == DryRunOnChainHash(receipt.PayloadHash), nil
	case StatusConfirmed:
	default:
		return false, nil
	}
	if s.verifier == nil {
		return false, xerrors.New(xerrors.CodeInitializationFailure, "未配置注册表校验器")
	}
	hash, err := digest.ParseHex(receipt.PayloadHash)
	if err != nil {
		return false, err
	}
	resp, err := s.verifier.Verify(ctx, receipt.AnchorType, hash.Bytes())
	if err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// VerifyID 按 ID 加载并校验回执。
func (s *Service) VerifyID(ctx context.Context, id string) (*Receipt, bool, error) {
	receipt, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	ok, err := s.Verify(ctx, receipt)
	return receipt, ok, err
}

// Close 释放底层资源。
func (s *Service) Close() error {
	var firstErr error
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			firstErr = err
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
