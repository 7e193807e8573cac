package payload

import (
	"encoding/binary"

	"ProjectAnchor/internal/digest"
)

// FormatAnchorRecord renders the compact record used when an anchor is
// relayed to another system: tag ":" hex(hash) ":" 8-byte big-endian
// timestamp.
func FormatAnchorRecord(hash digest.Digest, tag string, timestamp uint64) []byte {
	hexHash := hash.Hex()
	out := make([]byte, 0, len(tag)+len(hexHash)+2+8)
	out = append(out, tag...)
	out = append(out, ':')
	out = append(out, hexHash...)
	out = append(out, ':')
	out = binary.BigEndian.AppendUint64(out, timestamp)
	return out
}

// FormatMerkleAnchor is FormatAnchorRecord for a Merkle root, using the
// leaf count as the trailing number.
func FormatMerkleAnchor(rootHex string, leafCount uint64) ([]byte, error) {
	root, err := digest.ParseHex(rootHex)
	if err != nil {
		return nil, err
	}
	return FormatAnchorRecord(root, string(KindMerkleRoot), leafCount), nil
}
