package payload

import (
	"ProjectAnchor/internal/anchor"
	xerrors "ProjectAnchor/internal/errors"
)

// Kind is the literal tag that prefixes a canonical payload.
type Kind string

const (
	KindMerkleRoot    Kind = "merkle_root"
	KindClaimScore    Kind = "claim_score"
	KindEquationProof Kind = "equation_proof"
)

// Separator joins the tag and every canonical field.
const Separator = ":"

// Layout is the per-kind configuration: the namespace the digest is
// registered under and the canonical field names in order.
type Layout struct {
	Kind       Kind
	AnchorType anchor.Type
	Fields     []string
}

var layouts = map[Kind]Layout{
	KindMerkleRoot: {
		Kind:       KindMerkleRoot,
		AnchorType: anchor.TypeRoot,
		Fields:     []string{"root_hash", "leaf_count", "previous_root"},
	},
	KindClaimScore: {
		Kind:       KindClaimScore,
		AnchorType: anchor.TypeClaimScore,
		Fields: []string{"claim_id", "composite_score", "shannon_entropy", "citation_density",
			"support_count", "contradict_count", "stability_class"},
	},
	KindEquationProof: {
		Kind:       KindEquationProof,
		AnchorType: anchor.TypeEquationProof,
		Fields: []string{"equation_name", "equation_hash", "proof_tree_hash", "stability_class",
			"solvability_index", "compression_ratio", "dimensional_valid"},
	},
}

// Kinds lists the supported payload kinds.
func Kinds() []Kind {
	return []Kind{KindMerkleRoot, KindClaimScore, KindEquationProof}
}

// LayoutOf returns the layout for kind.
func LayoutOf(kind Kind) (Layout, bool) {
	layout, ok := layouts[kind]
	return layout, ok
}

// ParseKind validates a kind string coming from a transport.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(raw)
	if _, ok := layouts[kind]; !ok {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "unknown payload kind", xerrors.WithMetadata("kind", raw))
	}
	return kind, nil
}

// AnchorType returns the registry namespace digests of this kind go to.
func (k Kind) AnchorType() anchor.Type {
	return layouts[k].AnchorType
}

// KindFor maps an anchor namespace back to its payload kind.
func KindFor(typ anchor.Type) (Kind, bool) {
	for _, layout := range layouts {
		if layout.AnchorType == typ {
			return layout.Kind, true
		}
	}
	return "", false
}
