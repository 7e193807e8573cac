package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ProjectAnchor/internal/contract"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/ledger"
	"ProjectAnchor/internal/observability/alerting"
	"ProjectAnchor/internal/payload"
	"ProjectAnchor/internal/registry"
	"ProjectAnchor/internal/storage/memory"
)

func newTestHost(t *testing.T) *ledger.Host {
	t.Helper()
	backend := memory.New()
	handler := contract.NewHandler(registry.New(backend))
	host := ledger.NewHost(handler, ledger.NewSequenceClock(backend), "anchor-test")
	if err := host.Bootstrap(context.Background(), "admin"); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	return host
}

type flakySubmitter struct {
	mu    sync.Mutex
	calls int
	fail  int
	err   error
}

func (f *flakySubmitter) Name() string { return "flaky" }

func (f *flakySubmitter) Submit(_ context.Context, req Request) (Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fail {
		return Confirmation{}, f.err
	}
	return Confirmation{Status: StatusConfirmed, OnChainHash: req.Hash.Hex(), TxRef: "tx"}, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (r *recordingDispatcher) Notify(_ context.Context, event alerting.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[Status]int
}

func (c *countingObserver) ReceiptSettled(_ *Receipt, status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[Status]int)
	}
	c.counts[status]++
}

func TestProcessorConfirmsThroughHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host := newTestHost(t)
	store := NewMemoryStore()
	queue := NewMemoryQueue(256)
	service := NewService(store, queue, WithVerifier(host.Handler()))
	processor := NewProcessor(NewHostSubmitter(host, "bridge"), store, queue, queue, WithWorkerCount(4))

	go func() {
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("processor exited: %v", err)
		}
	}()

	total := 50
	ids := make([]string, 0, total)
	for i := 0; i < total; i++ {
		receipt, err := service.AnchorClaimScore(ctx, uint64(i), 0.5, 1.25, 0.75, 3, 1, "stable")
		if err != nil {
			t.Fatalf("AnchorClaimScore returned error: %v", err)
		}
		ids = append(ids, receipt.ID)
	}

	deadline := time.After(5 * time.Second)
	for {
		confirmed, err := service.List(ctx, WithStatuses(StatusConfirmed), WithLimit(100))
		if err != nil {
			t.Fatalf("List returned error: %v", err)
		}
		if len(confirmed) == total {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("receipts not confirmed in time, got %d", len(confirmed))
		case <-time.After(20 * time.Millisecond):
		}
	}
	cancel()

	cfg, err := host.Handler().Registry().Config(context.Background())
	if err != nil {
		t.Fatalf("Config returned error: %v", err)
	}
	if cfg.TotalAnchors != uint64(total) {
		t.Fatalf("unexpected total anchors: %d", cfg.TotalAnchors)
	}

	receipt, ok, err := service.VerifyID(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("VerifyID returned error: %v", err)
	}
	if !ok || receipt.Registrant != "bridge" || receipt.BlockHeight < 2 || receipt.TxRef == "" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestProcessorTreatsDuplicateAsConfirmed(t *testing.T) {
	ctx := context.Background()
	host := newTestHost(t)
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	service := NewService(store, queue, WithVerifier(host.Handler()))
	processor := NewProcessor(NewHostSubmitter(host, "bridge"), store, queue, queue)

	first, err := service.AnchorMerkleRoot(ctx, "aa", 4, "", "")
	if err != nil {
		t.Fatalf("AnchorMerkleRoot returned error: %v", err)
	}
	second, err := service.AnchorMerkleRoot(ctx, "aa", 4, "t1,t2", "")
	if err != nil {
		t.Fatalf("AnchorMerkleRoot returned error: %v", err)
	}
	if first.PayloadHash != second.PayloadHash {
		t.Fatalf("table hashes must not change the payload hash")
	}
	for _, id := range []string{first.ID, second.ID} {
		if err := processor.Handle(ctx, id); err != nil {
			t.Fatalf("Handle returned error: %v", err)
		}
	}
	for _, id := range []string{first.ID, second.ID} {
		receipt, _ := store.Get(ctx, id)
		if receipt.Status != StatusConfirmed {
			t.Fatalf("receipt %s not confirmed: %+v", id, receipt)
		}
		if receipt.BlockHeight != 2 {
			t.Fatalf("duplicate should report original height, got %d", receipt.BlockHeight)
		}
	}
	cfg, _ := host.Handler().Registry().Config(ctx)
	if cfg.TotalAnchors != 1 {
		t.Fatalf("duplicate must not bump counter: %d", cfg.TotalAnchors)
	}

	// 已确认的回执再次投递时直接跳过。
	if err := processor.Handle(ctx, first.ID); err != nil {
		t.Fatalf("Handle on settled receipt returned error: %v", err)
	}
}

func TestProcessorRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	submitter := &flakySubmitter{fail: 2, err: xerrors.New(CodeBridgeSubmit, "temporary")}
	service := NewService(store, queue, WithMaxAttempts(3))
	processor := NewProcessor(submitter, store, queue, queue)

	receipt, err := service.AnchorEquationProof(ctx, "navier", "e1", "p1", "stable", 0.9, 0.5, true)
	if err != nil {
		t.Fatalf("AnchorEquationProof returned error: %v", err)
	}
	for i := 0; i < 3; i++ {
		id := <-queueChannel(queue)
		if err := processor.Handle(ctx, id); err != nil {
			t.Fatalf("Handle returned error: %v", err)
		}
	}
	got, _ := store.Get(ctx, receipt.ID)
	if got.Status != StatusConfirmed || got.Attempts != 3 {
		t.Fatalf("unexpected receipt: %+v", got)
	}
	if queue.Len() != 0 {
		t.Fatalf("queue should be drained, got %d", queue.Len())
	}
}

func TestProcessorAlertsOnExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	alerts := &recordingDispatcher{}
	observer := &countingObserver{}
	submitter := &flakySubmitter{fail: 10, err: xerrors.New(CodeBridgeSubmit, "down")}
	service := NewService(store, queue, WithMaxAttempts(2))
	processor := NewProcessor(submitter, store, queue, queue, WithAlertDispatcher(alerts), WithObserver(observer))

	receipt, err := service.AnchorMerkleRoot(ctx, "bb", 1, "", "")
	if err != nil {
		t.Fatalf("AnchorMerkleRoot returned error: %v", err)
	}
	for i := 0; i < 2; i++ {
		id := <-queueChannel(queue)
		if err := processor.Handle(ctx, id); err != nil {
			t.Fatalf("Handle returned error: %v", err)
		}
	}
	got, _ := store.Get(ctx, receipt.ID)
	if got.Status != StatusFailed || !got.Terminal() || got.ErrorCode != string(CodeBridgeSubmit) {
		t.Fatalf("unexpected receipt: %+v", got)
	}
	if queue.Len() != 0 {
		t.Fatalf("terminal receipt must not be requeued")
	}
	if len(alerts.events) != 1 || alerts.events[0].Metadata["stage"] != "terminal" || alerts.events[0].ReceiptID != receipt.ID {
		t.Fatalf("unexpected alerts: %+v", alerts.events)
	}
	if observer.counts[StatusFailed] != 1 {
		t.Fatalf("observer not notified: %+v", observer.counts)
	}
	if err := processor.Handle(ctx, receipt.ID); err != nil {
		t.Fatalf("exhausted receipt should be skipped, got %v", err)
	}
}

func TestProcessorStopsOnNonRetryableError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	alerts := &recordingDispatcher{}
	submitter, err := NewEVMSubmitter("sepolia", "0x00000000000000000000000000000000000000aa")
	if err != nil {
		t.Fatalf("NewEVMSubmitter returned error: %v", err)
	}
	service := NewService(store, queue, WithMaxAttempts(5))
	processor := NewProcessor(submitter, store, queue, queue, WithAlertDispatcher(alerts))

	receipt, err := service.AnchorClaimScore(ctx, 7, 1, 2, 3, 4, 5, "volatile")
	if err != nil {
		t.Fatalf("AnchorClaimScore returned error: %v", err)
	}
	if err := processor.Handle(ctx, <-queueChannel(queue)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	got, _ := store.Get(ctx, receipt.ID)
	if got.Status != StatusFailed || !got.Terminal() || got.ErrorCode != string(xerrors.CodeNotSupported) {
		t.Fatalf("unexpected receipt: %+v", got)
	}
	if len(alerts.events) != 1 || alerts.events[0].Metadata["calldata"] == "" {
		t.Fatalf("expected calldata in alert metadata: %+v", alerts.events)
	}
}

func TestDryRunReceiptVerifies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	service := NewService(store, queue)
	processor := NewProcessor(DryRunSubmitter{}, store, queue, queue)

	receipt, err := service.AnchorSealed(ctx, payload.NewMerkleRoot("cc", 2, "", "bb"))
	if err != nil {
		t.Fatalf("AnchorSealed returned error: %v", err)
	}
	if err := processor.Handle(ctx, <-queueChannel(queue)); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	got, ok, err := service.VerifyID(ctx, receipt.ID)
	if err != nil || !ok {
		t.Fatalf("dry run receipt should verify: ok=%v err=%v", ok, err)
	}
	if got.Status != StatusDryRun || got.TxRef != "dry-run-"+receipt.PayloadHash[:16] {
		t.Fatalf("unexpected receipt: %+v", got)
	}
	if got.OnChainHash != DryRunOnChainHash(receipt.PayloadHash) {
		t.Fatalf("unexpected on-chain hash: %s", got.OnChainHash)
	}

	got.OnChainHash = fmt.Sprintf("%064d", 0)
	if ok, _ := service.Verify(ctx, got); ok {
		t.Fatalf("tampered dry run receipt must not verify")
	}
}

func TestServiceRejectsTamperedPayload(t *testing.T) {
	ctx := context.Background()
	service := NewService(NewMemoryStore(), NewMemoryQueue(1))
	p := payload.NewMerkleRoot("dd", 3, "", "")
	p.Body.LeafCount = 4
	if _, err := service.AnchorSealed(ctx, p); !xerrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceMarksReceiptFailedWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(1)
	_ = queue.Close()
	service := NewService(store, queue)

	if _, err := service.AnchorMerkleRoot(ctx, "ee", 1, "", ""); xerrors.CodeOf(err) != CodeBridgePublish {
		t.Fatalf("expected publish error, got %v", err)
	}
	receipts, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(receipts) != 1 || receipts[0].Status != StatusFailed || !receipts[0].Terminal() {
		t.Fatalf("unexpected receipts: %+v", receipts)
	}
}

func queueChannel(q *MemoryQueue) <-chan string {
	return q.ch
}

func TestServiceResumeRepublishesUnfinishedReceipts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	service := NewService(store, queue)

	for _, r := range []*Receipt{
		{ID: "pending", Status: StatusPending, MaxAttempts: 3},
		{ID: "retry", Status: StatusFailed, Attempts: 1, MaxAttempts: 3},
		{ID: "done", Status: StatusConfirmed, Attempts: 1, MaxAttempts: 3},
		{ID: "dead", Status: StatusFailed, Attempts: 3, MaxAttempts: 3},
	} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	n, err := service.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	if n != 2 || queue.Len() != 2 {
		t.Fatalf("expected 2 republished receipts, got n=%d len=%d", n, queue.Len())
	}
	seen := map[string]bool{<-queueChannel(queue): true, <-queueChannel(queue): true}
	if !seen["pending"] || !seen["retry"] {
		t.Fatalf("unexpected republished ids: %v", seen)
	}
}
