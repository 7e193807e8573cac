package ethereum

import (
	"bytes"
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/digest"
	xerrors "ProjectAnchor/internal/errors"
)

type fakeEthService struct {
	head uint64
}

func (s *fakeEthService) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(s.head)
}

func (s *fakeEthService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1337))
}

func newInProcClient(t *testing.T, head uint64) *Client {
	t.Helper()
	server := gethrpc.NewServer()
	if err := server.RegisterName("eth", &fakeEthService{head: head}); err != nil {
		t.Fatalf("register service: %v", err)
	}
	t.Cleanup(server.Stop)
	client := NewClientFromRPC("devnet", "in-process", gethrpc.DialInProc(server))
	t.Cleanup(client.Close)
	return client
}

func TestClientReportsHeadHeight(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := newInProcClient(t, 4242)
	height, err := client.LatestHeight(ctx)
	if err != nil {
		t.Fatalf("latest height: %v", err)
	}
	if height != 4242 {
		t.Fatalf("unexpected height %d", height)
	}

	snapshot, err := client.FetchChainSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.ChainID != "0x539" || snapshot.BlockNumber != 4242 || snapshot.Name != "devnet" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestClosedClientFails(t *testing.T) {
	t.Parallel()

	client := newInProcClient(t, 1)
	client.Close()
	if _, err := client.LatestHeight(context.Background()); xerrors.CodeOf(err) != xerrors.CodeChainFailure {
		t.Fatalf("expected chain failure after close, got %v", err)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(context.Background(), Config{Name: "empty"}); !xerrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPackRegister(t *testing.T) {
	t.Parallel()

	codec, err := NewAnchorCodec()
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	hash := digest.SumString("root")

	data, err := codec.PackRegister(anchor.TypeRoot, hash)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	selector := crypto.Keccak256([]byte("registerRoot(bytes32)"))[:4]
	if !bytes.Equal(data[:4], selector) {
		t.Fatalf("unexpected selector %x", data[:4])
	}
	if len(data) != 36 || !bytes.Equal(data[4:], hash[:]) {
		t.Fatalf("unexpected argument encoding %x", data[4:])
	}

	claim, err := codec.PackRegister(anchor.TypeClaimScore, hash)
	if err != nil {
		t.Fatalf("pack claim: %v", err)
	}
	if bytes.Equal(claim[:4], data[:4]) {
		t.Fatalf("namespaces must use distinct selectors")
	}

	if _, err := codec.PackRegister(anchor.Type(0), hash); xerrors.CodeOf(err) != xerrors.CodeUnknownAnchorType {
		t.Fatalf("expected unknown anchor type, got %v", err)
	}

	lookup, err := codec.PackGetAnchor(anchor.TypeEquationProof, hash)
	if err != nil {
		t.Fatalf("pack lookup: %v", err)
	}
	if len(lookup) != 4+64 || lookup[4+31] != byte(anchor.TypeEquationProof) {
		t.Fatalf("unexpected lookup encoding %x", lookup)
	}
}
