package ledger

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"testing"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/contract"
	"ProjectAnchor/internal/digest"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/registry"
	"ProjectAnchor/internal/storage/memory"
	"ProjectAnchor/internal/web3"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	backend := memory.New()
	handler := contract.NewHandler(registry.New(backend))
	return NewHost(handler, NewSequenceClock(backend), "anchor-test")
}

func TestHostStampsIncreasingHeights(t *testing.T) {
	ctx := context.Background()
	host := newTestHost(t)
	if err := host.Bootstrap(ctx, "admin"); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	first := digest.SumString("first")
	second := digest.SumString("second")
	resp1, err := host.Execute(ctx, "alice", contract.NewRegisterMsg(anchor.TypeRoot, first.Bytes()))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	resp2, err := host.Execute(ctx, "bob", contract.NewRegisterMsg(anchor.TypeRoot, second.Bytes()))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	h1, _ := resp1.Attr("block_height")
	h2, _ := resp2.Attr("block_height")
	if h1 != "2" || h2 != "3" {
		t.Fatalf("unexpected heights: %s %s", h1, h2)
	}
	if registrant, _ := resp2.Attr("registrant"); registrant != "bob" {
		t.Fatalf("unexpected registrant: %s", registrant)
	}

	height, err := host.Height(ctx)
	if err != nil || height != 3 {
		t.Fatalf("unexpected current height %d (err=%v)", height, err)
	}

	raw, err := host.Query(ctx, contract.NewVerifyMsg(anchor.TypeRoot, first.Bytes()))
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	var verify anchor.VerifyResponse
	if err := json.Unmarshal(raw, &verify); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if !verify.Exists || verify.Entry == nil || verify.Entry.RegisteredAt != 2 {
		t.Fatalf("unexpected verify response: %+v", verify)
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	host := newTestHost(t)
	if err := host.Bootstrap(ctx, "admin"); err != nil {
		t.Fatalf("first Bootstrap returned error: %v", err)
	}
	if err := host.Bootstrap(ctx, "someone-else"); err != nil {
		t.Fatalf("second Bootstrap returned error: %v", err)
	}
	cfg, err := host.Handler().Registry().Config(ctx)
	if err != nil {
		t.Fatalf("Config returned error: %v", err)
	}
	if cfg.Admin != "admin" {
		t.Fatalf("admin overwritten: %s", cfg.Admin)
	}
}

func TestHostRejectsAnonymousSender(t *testing.T) {
	host := newTestHost(t)
	_, err := host.Execute(context.Background(), " ", contract.NewRegisterMsg(anchor.TypeRoot, make([]byte, 32)))
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestRejectedMessageDoesNotAdvanceHeight(t *testing.T) {
	ctx := context.Background()
	host := newTestHost(t)
	if err := host.Bootstrap(ctx, "admin"); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	_, err := host.Execute(ctx, "alice", contract.NewRegisterMsg(anchor.TypeRoot, make([]byte, 16)))
	if xerrors.CodeOf(err) != xerrors.CodeInvalidHashLength {
		t.Fatalf("expected INVALID_HASH_LENGTH, got %v", err)
	}
	if _, err := host.Execute(ctx, "alice", contract.ExecuteMsg{}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument for empty message, got %v", err)
	}
	height, err := host.Height(ctx)
	if err != nil || height != 1 {
		t.Fatalf("rejected messages must not advance height, got %d (err=%v)", height, err)
	}

	resp, err := host.Execute(ctx, "alice", contract.NewRegisterMsg(anchor.TypeRoot, digest.SumString("ok").Bytes()))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if h, _ := resp.Attr("block_height"); h != "2" {
		t.Fatalf("unexpected height after rejections: %s", h)
	}
}

type fakeChain struct {
	heights []uint64
	err     error
}

func (f *fakeChain) FetchChainSnapshot(context.Context) (web3.ChainSnapshot, error) {
	return web3.ChainSnapshot{}, nil
}

func (f *fakeChain) LatestHeight(context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	h := f.heights[0]
	if len(f.heights) > 1 {
		f.heights = f.heights[1:]
	}
	return h, nil
}

func (f *fakeChain) Close() {}

func TestChainClockNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	clock := NewChainClock(&fakeChain{heights: []uint64{10, 8, 12}})
	want := []uint64{10, 10, 12}
	for i, w := range want {
		got, err := clock.Next(ctx)
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		if got != w {
			t.Fatalf("step %d: expected %d, got %d", i, w, got)
		}
	}
	if current, _ := clock.Current(ctx); current != 12 {
		t.Fatalf("unexpected current height %d", current)
	}
}

func TestChainClockWrapsErrors(t *testing.T) {
	clock := NewChainClock(&fakeChain{err: stdErrors.New("dial tcp: refused")})
	_, err := clock.Next(context.Background())
	if xerrors.CodeOf(err) != xerrors.CodeChainFailure {
		t.Fatalf("expected chain failure, got %v", err)
	}
}
