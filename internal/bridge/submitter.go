package bridge

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/contract"
	"ProjectAnchor/internal/digest"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/ledger"
	"ProjectAnchor/internal/registry"
	"ProjectAnchor/internal/web3/ethereum"
	"ProjectAnchor/pkg/anchorclient"
)

// Request 是一次提交的输入。
type Request struct {
	ReceiptID   string
	AnchorType  anchor.Type
	Hash        digest.Digest
	PayloadHash string
}

// Submitter 将载荷摘要提交到注册表。
type Submitter interface {
	Name() string
	Submit(ctx context.Context, req Request) (Confirmation, error)
}

// HostSubmitter 向进程内的宿主账本提交。
type HostSubmitter struct {
	host   *ledger.Host
	sender string
}

// NewHostSubmitter 创建进程内提交器，sender 为登记人身份。
func NewHostSubmitter(host *ledger.Host, sender string) *HostSubmitter {
	return &HostSubmitter{host: host, sender: sender}
}

// Name 实现 Submitter。
func (s *HostSubmitter) Name() string { return "host" }

// Submit 实现 Submitter。已登记的摘要按既有条目确认。
func (s *HostSubmitter) Submit(ctx context.Context, req Request) (Confirmation, error) {
	resp, err := s.host.Execute(ctx, s.sender, contract.NewRegisterMsg(req.AnchorType, req.Hash.Bytes()))
	if stdErrors.Is(err, registry.ErrAlreadyAnchored) {
		existing, verr := s.host.Handler().Verify(ctx, req.AnchorType, req.Hash.Bytes())
		if verr != nil {
			return Confirmation{}, verr
		}
		return confirmationFromEntry(req, existing.Entry), nil
	}
	if err != nil {
		return Confirmation{}, err
	}
	height, _ := resp.Attr("block_height")
	registrant, _ := resp.Attr("registrant")
	parsed, _ := strconv.ParseUint(height, 10, 64)
	return Confirmation{
		Status:      StatusConfirmed,
		TxRef:       txRef(req, parsed),
		OnChainHash: req.Hash.Hex(),
		BlockHeight: parsed,
		Registrant:  registrant,
	}, nil
}

// HTTPSubmitter 通过 REST 接口向远端 anchord 提交。
type HTTPSubmitter struct {
	client *anchorclient.Client
}

// NewHTTPSubmitter 创建远端提交器。
func NewHTTPSubmitter(client *anchorclient.Client) *HTTPSubmitter {
	return &HTTPSubmitter{client: client}
}

// Name 实现 Submitter。
func (s *HTTPSubmitter) Name() string { return "http" }

// Submit 实现 Submitter。
func (s *HTTPSubmitter) Submit(ctx context.Context, req Request) (Confirmation, error) {
	resp, err := s.client.Register(ctx, req.AnchorType.String(), req.Hash.Bytes())
	if anchorclient.ErrorCode(err) == string(xerrors.CodeAlreadyAnchored) {
		existing, verr := s.client.Verify(ctx, req.AnchorType.String(), req.Hash.Bytes())
		if verr != nil {
			return Confirmation{}, wrapRemote(verr)
		}
		conf := Confirmation{Status: StatusConfirmed, OnChainHash: req.Hash.Hex()}
		if existing.Entry != nil {
			conf.BlockHeight = existing.Entry.RegisteredAt
			conf.Registrant = existing.Entry.Registrant
		}
		conf.TxRef = txRef(req, conf.BlockHeight)
		return conf, nil
	}
	if err != nil {
		return Confirmation{}, wrapRemote(err)
	}
	height, _ := resp.Attr("block_height")
	registrant, _ := resp.Attr("registrant")
	parsed, _ := strconv.ParseUint(height, 10, 64)
	return Confirmation{
		Status:      StatusConfirmed,
		TxRef:       txRef(req, parsed),
		OnChainHash: req.Hash.Hex(),
		BlockHeight: parsed,
		Registrant:  registrant,
	}, nil
}

// wrapRemote 将 4xx 视为不可重试，其余按可重试处理。
func wrapRemote(err error) error {
	var apiErr *anchorclient.APIError
	if stdErrors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusServiceUnavailable {
		return xerrors.Wrap(CodeBridgeSubmit, err, "远端拒绝提交", xerrors.WithRetryable(false))
	}
	return xerrors.Wrap(CodeBridgeSubmit, err, "远端提交失败")
}

// DryRunSubmitter 只计算链上摘要，不做任何提交。
type DryRunSubmitter struct{}

// Name 实现 Submitter。
func (DryRunSubmitter) Name() string { return "dry_run" }

// Submit 实现 Submitter。链上摘要为 SHA-256(payload_hash 十六进制文本)。
func (DryRunSubmitter) Submit(_ context.Context, req Request) (Confirmation, error) {
	return Confirmation{
		Status:      StatusDryRun,
		TxRef:       "dry-run-" + shortHash(req.PayloadHash),
		OnChainHash: DryRunOnChainHash(req.PayloadHash),
	}, nil
}

// DryRunOnChainHash 返回演练模式下记录的链上摘要。
func DryRunOnChainHash(payloadHash string) string {
	return digest.SumString(payloadHash).Hex()
}

// EVMSubmitter 为 EVM 锚定合约编码调用数据。交易签名与广播尚未接入，
// 因此 Submit 总是返回 NOT_SUPPORTED，错误元数据中带有编码结果。
type EVMSubmitter struct {
	codec    *ethereum.AnchorCodec
	contract common.Address
	chain    string
}

// NewEVMSubmitter 创建 EVM 提交器。
func NewEVMSubmitter(chain, contractAddress string) (*EVMSubmitter, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "无效的合约地址", xerrors.WithMetadata("address", contractAddress))
	}
	codec, err := ethereum.NewAnchorCodec()
	if err != nil {
		return nil, err
	}
	return &EVMSubmitter{codec: codec, contract: common.HexToAddress(contractAddress), chain: chain}, nil
}

// Name 实现 Submitter。
func (s *EVMSubmitter) Name() string { return "evm" }

// Calldata 返回注册调用的 ABI 编码。
func (s *EVMSubmitter) Calldata(req Request) ([]byte, error) {
	return s.codec.PackRegister(req.AnchorType, req.Hash)
}

// Submit 实现 Submitter。
func (s *EVMSubmitter) Submit(_ context.Context, req Request) (Confirmation, error) {
	data, err := s.Calldata(req)
	if err != nil {
		return Confirmation{}, err
	}
	return Confirmation{}, xerrors.New(xerrors.CodeNotSupported, "EVM 交易广播未实现",
		xerrors.WithRetryable(false),
		xerrors.WithMetadata("chain", s.chain),
		xerrors.WithMetadata("contract", s.contract.Hex()),
		xerrors.WithMetadata("calldata", hexutil.Encode(data)),
	)
}

func confirmationFromEntry(req Request, entry *anchor.Entry) Confirmation {
	conf := Confirmation{Status: StatusConfirmed, OnChainHash: req.Hash.Hex()}
	if entry != nil {
		conf.BlockHeight = entry.RegisteredAt
		conf.Registrant = entry.Registrant
	}
	conf.TxRef = txRef(req, conf.BlockHeight)
	return conf
}

func txRef(req Request, height uint64) string {
	return fmt.Sprintf("%s-%s@%d", req.AnchorType, shortHash(req.Hash.Hex()), height)
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}

var (
	_ Submitter = (*HostSubmitter)(nil)
	_ Submitter = (*HTTPSubmitter)(nil)
	_ Submitter = DryRunSubmitter{}
	_ Submitter = (*EVMSubmitter)(nil)
)
