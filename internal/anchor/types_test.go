package anchor

import (
	"encoding/json"
	"testing"

	xerrors "ProjectAnchor/internal/errors"
)

func TestParseTypeKnownValues(t *testing.T) {
	for _, typ := range Types() {
		parsed, err := ParseType(typ.String())
		if err != nil {
			t.Fatalf("parse %s: %v", typ, err)
		}
		if parsed != typ {
			t.Fatalf("expected %s, got %s", typ, parsed)
		}
	}
}

func TestParseTypeUnknown(t *testing.T) {
	for _, raw := range []string{"", "roots", "Root", "merkle_root", "claim", " root", "root ", "claim_score\n"} {
		if _, err := ParseType(raw); xerrors.CodeOf(err) != xerrors.CodeUnknownAnchorType {
			t.Fatalf("%q: expected UNKNOWN_ANCHOR_TYPE, got %v", raw, err)
		}
	}
}

func TestTypeNaming(t *testing.T) {
	cases := []struct {
		typ       Type
		namespace string
		action    string
	}{
		{TypeRoot, "roots", "register_root"},
		{TypeClaimScore, "claim_scores", "register_claim_score"},
		{TypeEquationProof, "equation_proofs", "register_equation_proof"},
	}
	for _, tc := range cases {
		if tc.typ.Namespace() != tc.namespace {
			t.Fatalf("%s: namespace %q", tc.typ, tc.typ.Namespace())
		}
		if tc.typ.Action() != tc.action {
			t.Fatalf("%s: action %q", tc.typ, tc.typ.Action())
		}
	}
	if Type(0).Valid() || Type(9).Namespace() != "" {
		t.Fatalf("out-of-range types must be invalid")
	}
}

func TestEntryJSONShape(t *testing.T) {
	entry := Entry{HashHex: "ab", AnchorType: TypeClaimScore, RegisteredAt: 7, Registrant: "alice"}
	raw, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"hash_hex":"ab","anchor_type":"claim_score","registered_at":7,"registrant":"alice"}`
	if string(raw) != want {
		t.Fatalf("unexpected json %s", raw)
	}

	var decoded Entry
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != entry {
		t.Fatalf("decoded %+v", decoded)
	}
}
