package redis

import (
	"strings"
	"testing"

	"ProjectAnchor/internal/storage"
)

func TestKeyEncoding(t *testing.T) {
	b := NewKVBackendWithClient(nil, "", 0)
	key := b.key(storage.NamespacedKey("roots", []byte{0xde, 0xad}))
	if !strings.HasPrefix(key, "anchor:kv:") {
		t.Fatalf("missing prefix: %s", key)
	}
	if key != "anchor:kv:0005726f6f7473dead" {
		t.Fatalf("unexpected key: %s", key)
	}
	if b.revision != "anchor:kv:__rev" {
		t.Fatalf("unexpected revision key: %s", b.revision)
	}
	if b.maxRetries != 8 {
		t.Fatalf("default retries not applied: %d", b.maxRetries)
	}
}

func TestBufferedWritesAreVisibleInsideTransaction(t *testing.T) {
	b := NewKVBackendWithClient(nil, "test:", 1)
	tx := &txn{reader: reader{backend: b}, writes: make(map[string][]byte)}
	value := []byte("v1")
	if err := tx.Set([]byte("k"), value); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'x'
	got, found, err := tx.Get([]byte("k"))
	if err != nil || !found || string(got) != "v1" {
		t.Fatalf("unexpected read: %q %v %v", got, found, err)
	}
}
