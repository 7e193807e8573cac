package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/digest"
	xerrors "ProjectAnchor/internal/errors"
)

// AnchorRegistryABI is the interface of an EVM port of the anchor registry.
const AnchorRegistryABI = `[
  {"type":"function","name":"registerRoot","stateMutability":"nonpayable","inputs":[{"name":"hash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"registerClaimScore","stateMutability":"nonpayable","inputs":[{"name":"hash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"registerEquationProof","stateMutability":"nonpayable","inputs":[{"name":"hash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"getAnchor","stateMutability":"view","inputs":[{"name":"anchorType","type":"uint8"},{"name":"hash","type":"bytes32"}],"outputs":[{"name":"registeredAt","type":"uint64"},{"name":"registrant","type":"address"}]}
]`

var registerMethods = map[anchor.Type]string{
	anchor.TypeRoot:          "registerRoot",
	anchor.TypeClaimScore:    "registerClaimScore",
	anchor.TypeEquationProof: "registerEquationProof",
}

// AnchorCodec packs calldata for the EVM anchor registry.
type AnchorCodec struct {
	abi abi.ABI
}

// NewAnchorCodec parses AnchorRegistryABI.
func NewAnchorCodec() (*AnchorCodec, error) {
	parsed, err := abi.JSON(strings.NewReader(AnchorRegistryABI))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "解析 ABI 失败")
	}
	return &AnchorCodec{abi: parsed}, nil
}

// MethodFor returns the register method name used for typ.
func MethodFor(typ anchor.Type) (string, bool) {
	name, ok := registerMethods[typ]
	return name, ok
}

// PackRegister encodes the register call for typ.
func (c *AnchorCodec) PackRegister(typ anchor.Type, hash digest.Digest) ([]byte, error) {
	method, ok := MethodFor(typ)
	if !ok {
		return nil, xerrors.New(xerrors.CodeUnknownAnchorType, "Unknown anchor type")
	}
	data, err := c.abi.Pack(method, [32]byte(hash))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码调用数据失败")
	}
	return data, nil
}

// PackGetAnchor encodes the read-only lookup call.
func (c *AnchorCodec) PackGetAnchor(typ anchor.Type, hash digest.Digest) ([]byte, error) {
	if !typ.Valid() {
		return nil, xerrors.New(xerrors.CodeUnknownAnchorType, "Unknown anchor type")
	}
	data, err := c.abi.Pack("getAnchor", uint8(typ), [32]byte(hash))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码调用数据失败")
	}
	return data, nil
}
