package digest

import (
	"strings"
	"testing"

	xerrors "ProjectAnchor/internal/errors"
)

func TestSumDeterministic(t *testing.T) {
	data := []byte("Project Anchor - Gravity Event")
	if Sum(data) != Sum(data) {
		t.Fatalf("same input produced different digests")
	}
}

func TestSumDistinctInputs(t *testing.T) {
	if SumString("input_a") == SumString("input_b") {
		t.Fatalf("input_a and input_b must hash differently")
	}
}

func TestSumKnownVectors(t *testing.T) {
	cases := map[string]string{
		"":    "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"abc": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	}
	for input, want := range cases {
		if got := SumString(input).Hex(); got != want {
			t.Fatalf("sha256(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		_, err := FromBytes(make([]byte, n))
		if xerrors.CodeOf(err) != xerrors.CodeInvalidHashLength {
			t.Fatalf("len %d: expected INVALID_HASH_LENGTH, got %v", n, err)
		}
	}
	raw := make([]byte, Size)
	raw[0] = 0xab
	d, err := FromBytes(raw)
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}
	if d[0] != 0xab || !ValidLength(d.Bytes()) {
		t.Fatalf("unexpected digest %s", d)
	}
}

func TestParseHex(t *testing.T) {
	want := SumString("test_root")

	got, err := ParseHex(want.Hex())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch")
	}
	if _, err := ParseHex(strings.ToUpper(want.Hex())); err != nil {
		t.Fatalf("upper-case hex should parse: %v", err)
	}

	for _, bad := range []string{
		"not_hex",
		"abcd",
		strings.Repeat("a", 66),
		"0x" + want.Hex(),
		" " + want.Hex(),
		want.Hex() + "\n",
	} {
		d, err := ParseHex(bad)
		if xerrors.CodeOf(err) != xerrors.CodeDecodeFailure {
			t.Fatalf("%q: expected DECODE_FAILURE, got %v", bad, err)
		}
		if !d.IsZero() {
			t.Fatalf("%q: failed parse must not return data", bad)
		}
	}
}
