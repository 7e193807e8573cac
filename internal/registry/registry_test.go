package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/digest"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/storage"
	"ProjectAnchor/internal/storage/memory"
)

func newRegistry(t *testing.T, opts ...Option) (*Registry, *memory.Backend) {
	t.Helper()
	backend := memory.New()
	reg := New(backend, opts...)
	if _, err := reg.Instantiate(context.Background(), "admin"); err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return reg, backend
}

func TestRegisterRejectsWrongHashLength(t *testing.T) {
	ctx := context.Background()
	reg, backend := newRegistry(t)
	before := backend.Len()

	for _, size := range []int{0, 16, 31, 33, 64} {
		_, err := reg.Register(ctx, anchor.TypeRoot, make([]byte, size), "alice", 1)
		if !xerrors.IsValidation(err) {
			t.Fatalf("size %d: expected validation error, got %v", size, err)
		}
		if xerrors.CodeOf(err) != xerrors.CodeInvalidHashLength {
			t.Fatalf("size %d: unexpected code %s", size, xerrors.CodeOf(err))
		}
	}

	cfg, err := reg.Config(ctx)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.TotalAnchors != 0 {
		t.Fatalf("counter moved after rejected registrations: %d", cfg.TotalAnchors)
	}
	if backend.Len() != before {
		t.Fatalf("store changed after rejected registrations")
	}
}

func TestCounterEqualsDistinctRegistrations(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	const n = 30
	for i := 0; i < n; i++ {
		typ := anchor.Types()[i%3]
		h := digest.SumString(fmt.Sprintf("artifact-%d", i))
		if _, err := reg.Register(ctx, typ, h[:], "alice", uint64(i)); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	cfg, err := reg.Config(ctx)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.TotalAnchors != n {
		t.Fatalf("expected %d anchors, got %d", n, cfg.TotalAnchors)
	}
	if cfg.Admin != "admin" {
		t.Fatalf("unexpected admin %q", cfg.Admin)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	h := digest.SumString("merkle")

	entry, err := reg.Register(ctx, anchor.TypeRoot, h[:], "alice", 12)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if entry.HashHex != h.Hex() || entry.RegisteredAt != 12 || entry.Registrant != "alice" || entry.AnchorType != anchor.TypeRoot {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	got, found, err := reg.Lookup(ctx, anchor.TypeRoot, h[:])
	if err != nil || !found {
		t.Fatalf("expected root entry: %v %v", found, err)
	}
	if *got != entry {
		t.Fatalf("lookup returned %+v, want %+v", *got, entry)
	}

	for _, typ := range []anchor.Type{anchor.TypeClaimScore, anchor.TypeEquationProof} {
		got, found, err := reg.Lookup(ctx, typ, h[:])
		if err != nil {
			t.Fatalf("lookup %s: %v", typ, err)
		}
		if found || got != nil {
			t.Fatalf("hash leaked into %s namespace", typ)
		}
	}

	// 同一摘要可以在其他命名空间独立登记。
	if _, err := reg.Register(ctx, anchor.TypeClaimScore, h[:], "bob", 13); err != nil {
		t.Fatalf("register in second namespace: %v", err)
	}
}

func TestReRegistrationIsConflictWithoutStateChange(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	h := digest.SumString("claim")

	if _, err := reg.Register(ctx, anchor.TypeClaimScore, h[:], "alice", 5); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := reg.Register(ctx, anchor.TypeClaimScore, h[:], "mallory", 9)
	if !errors.Is(err, ErrAlreadyAnchored) {
		t.Fatalf("expected ErrAlreadyAnchored, got %v", err)
	}
	if xerrors.KindOf(err) != xerrors.KindConflict {
		t.Fatalf("expected conflict kind, got %s", xerrors.KindOf(err))
	}

	entry, _, err := reg.Lookup(ctx, anchor.TypeClaimScore, h[:])
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if entry.Registrant != "alice" || entry.RegisteredAt != 5 {
		t.Fatalf("original entry was overwritten: %+v", entry)
	}
	cfg, _ := reg.Config(ctx)
	if cfg.TotalAnchors != 1 {
		t.Fatalf("counter double counted: %d", cfg.TotalAnchors)
	}
}

func TestRegisterRequiresInstantiate(t *testing.T) {
	ctx := context.Background()
	reg := New(memory.New())
	h := digest.SumString("x")

	_, err := reg.Register(ctx, anchor.TypeRoot, h[:], "alice", 1)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if ok, err := reg.Initialized(ctx); ok || err != nil {
		t.Fatalf("registry should report uninitialized: %v %v", ok, err)
	}

	if _, err := reg.Instantiate(ctx, "root-admin"); err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if _, err := reg.Instantiate(ctx, "other"); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	cfg, _ := reg.Config(ctx)
	if cfg.Admin != "root-admin" {
		t.Fatalf("second instantiate replaced admin: %q", cfg.Admin)
	}
}

func TestUnknownTypeRejected(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	h := digest.SumString("x")

	if _, err := reg.Register(ctx, anchor.Type(9), h[:], "alice", 1); xerrors.CodeOf(err) != xerrors.CodeUnknownAnchorType {
		t.Fatalf("expected unknown anchor type, got %v", err)
	}
	if _, _, err := reg.Lookup(ctx, anchor.Type(0), h[:]); xerrors.CodeOf(err) != xerrors.CodeUnknownAnchorType {
		t.Fatalf("expected unknown anchor type, got %v", err)
	}
}

func TestRegisterEmitsAuditRecord(t *testing.T) {
	var buf bytes.Buffer
	audit := slog.New(slog.NewJSONHandler(&buf, nil))
	reg, _ := newRegistry(t, WithAuditLogger(audit))
	h := digest.SumString("proof")

	if _, err := reg.Register(context.Background(), anchor.TypeEquationProof, h[:], "carol", 77); err != nil {
		t.Fatalf("register: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"msg":"register_equation_proof"`, `"hash":"` + h.Hex() + `"`, `"registrant":"carol"`, `"block_height":77`} {
		if !strings.Contains(out, want) {
			t.Fatalf("audit record missing %s: %s", want, out)
		}
	}
}

type countingObserver struct{ n int }

func (c *countingObserver) Anchored(anchor.Entry) { c.n++ }

type failingBackend struct {
	storage.Backend
}

func (f failingBackend) Update(ctx context.Context, fn func(storage.Txn) error) error {
	return f.Backend.Update(ctx, func(tx storage.Txn) error {
		if err := fn(tx); err != nil {
			return err
		}
		return xerrors.New(xerrors.CodeStorageFailure, "commit failed")
	})
}

func TestStorageFailureLeavesNoPartialWrite(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	obs := &countingObserver{}
	if _, err := New(backend).Instantiate(ctx, "admin"); err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	reg := New(failingBackend{Backend: backend}, WithObserver(obs))
	h := digest.SumString("x")

	if _, err := reg.Register(ctx, anchor.TypeRoot, h[:], "alice", 1); xerrors.CodeOf(err) != xerrors.CodeStorageFailure {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if _, found, _ := reg.Lookup(ctx, anchor.TypeRoot, h[:]); found {
		t.Fatalf("entry persisted despite failed commit")
	}
	cfg, _ := reg.Config(ctx)
	if cfg.TotalAnchors != 0 {
		t.Fatalf("counter persisted despite failed commit")
	}
	if obs.n != 0 {
		t.Fatalf("observer notified for failed registration")
	}
}
