package payload

import (
	"strconv"

	"ProjectAnchor/internal/digest"
)

// MerkleRoot anchors the root of an externally built Merkle tree.
// TableHashes is informational and not part of the canonical form.
type MerkleRoot struct {
	RootHash     string `json:"root_hash"`
	LeafCount    uint64 `json:"leaf_count"`
	TableHashes  string `json:"table_hashes,omitempty"`
	PreviousRoot string `json:"previous_root,omitempty"`
}

func (MerkleRoot) Kind() Kind { return KindMerkleRoot }

func (m MerkleRoot) CanonicalFields() []string {
	return []string{m.RootHash, strconv.FormatUint(m.LeafCount, 10), m.PreviousRoot}
}

// NewMerkleRoot seals a Merkle root payload. previousRoot may be empty.
func NewMerkleRoot(rootHash string, leafCount uint64, tableHashes, previousRoot string) *Payload[MerkleRoot] {
	return Construct(MerkleRoot{
		RootHash:     rootHash,
		LeafCount:    leafCount,
		TableHashes:  tableHashes,
		PreviousRoot: previousRoot,
	})
}

// RootBytes decodes the anchored tree root itself.
func (m MerkleRoot) RootBytes() (digest.Digest, error) {
	return digest.ParseHex(m.RootHash)
}

// ClaimScore anchors the confidence score of a single claim.
type ClaimScore struct {
	ClaimID         uint64 `json:"claim_id"`
	CompositeScore  Fixed8 `json:"composite_score"`
	ShannonEntropy  Fixed8 `json:"shannon_entropy"`
	CitationDensity Fixed8 `json:"citation_density"`
	SupportCount    uint64 `json:"support_count"`
	ContradictCount uint64 `json:"contradict_count"`
	StabilityClass  string `json:"stability_class"`
}

func (ClaimScore) Kind() Kind { return KindClaimScore }

func (c ClaimScore) CanonicalFields() []string {
	return []string{
		strconv.FormatUint(c.ClaimID, 10),
		string(c.CompositeScore),
		string(c.ShannonEntropy),
		string(c.CitationDensity),
		strconv.FormatUint(c.SupportCount, 10),
		strconv.FormatUint(c.ContradictCount, 10),
		c.StabilityClass,
	}
}

func (c ClaimScore) normalized() (ClaimScore, error) {
	var err error
	if c.CompositeScore, err = c.CompositeScore.canonical("composite_score"); err != nil {
		return c, err
	}
	if c.ShannonEntropy, err = c.ShannonEntropy.canonical("shannon_entropy"); err != nil {
		return c, err
	}
	if c.CitationDensity, err = c.CitationDensity.canonical("citation_density"); err != nil {
		return c, err
	}
	return c, nil
}

// NewClaimScore seals a claim score payload. Scores are not range checked.
func NewClaimScore(claimID uint64, composite, entropy, density float64, support, contradict uint64, stability string) *Payload[ClaimScore] {
	return Construct(ClaimScore{
		ClaimID:         claimID,
		CompositeScore:  FormatFixed8(composite),
		ShannonEntropy:  FormatFixed8(entropy),
		CitationDensity: FormatFixed8(density),
		SupportCount:    support,
		ContradictCount: contradict,
		StabilityClass:  stability,
	})
}

// EquationProof anchors the outcome of a formal proof over an equation.
type EquationProof struct {
	EquationName     string `json:"equation_name"`
	EquationHash     string `json:"equation_hash"`
	ProofTreeHash    string `json:"proof_tree_hash"`
	StabilityClass   string `json:"stability_class"`
	SolvabilityIndex Fixed8 `json:"solvability_index"`
	CompressionRatio Fixed8 `json:"compression_ratio"`
	DimensionalValid bool   `json:"dimensional_valid"`
}

func (EquationProof) Kind() Kind { return KindEquationProof }

func (e EquationProof) CanonicalFields() []string {
	valid := "0"
	if e.DimensionalValid {
		valid = "1"
	}
	return []string{
		e.EquationName,
		e.EquationHash,
		e.ProofTreeHash,
		e.StabilityClass,
		string(e.SolvabilityIndex),
		string(e.CompressionRatio),
		valid,
	}
}

func (e EquationProof) normalized() (EquationProof, error) {
	var err error
	if e.SolvabilityIndex, err = e.SolvabilityIndex.canonical("solvability_index"); err != nil {
		return e, err
	}
	if e.CompressionRatio, err = e.CompressionRatio.canonical("compression_ratio"); err != nil {
		return e, err
	}
	return e, nil
}

// NewEquationProof seals an equation proof payload.
func NewEquationProof(name, equationHash, proofTreeHash, stability string, solvability, compression float64, dimensionalValid bool) *Payload[EquationProof] {
	return Construct(EquationProof{
		EquationName:     name,
		EquationHash:     equationHash,
		ProofTreeHash:    proofTreeHash,
		StabilityClass:   stability,
		SolvabilityIndex: FormatFixed8(solvability),
		CompressionRatio: FormatFixed8(compression),
		DimensionalValid: dimensionalValid,
	})
}
