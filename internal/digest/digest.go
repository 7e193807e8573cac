package digest

import (
	"encoding/hex"

	sha256 "github.com/minio/sha256-simd"

	xerrors "ProjectAnchor/internal/errors"
)

// Size is the byte length of every anchored hash.
const Size = sha256.Size

// Digest is a 32-byte SHA-256 output.
type Digest [Size]byte

// Sum hashes data. Empty input is valid.
func Sum(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// SumString hashes the UTF-8 bytes of s.
func SumString(s string) Digest {
	return Sum([]byte(s))
}

// Hex returns the lowercase hex encoding.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return d.Hex()
}

// Bytes returns a copy of the digest as a slice.
func (d Digest) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, d[:])
	return out
}

// IsZero reports whether every byte is zero.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ValidLength reports whether b has the length of an anchored hash.
func ValidLength(b []byte) bool {
	return len(b) == Size
}

// FromBytes converts raw bytes into a Digest, rejecting any other length.
func FromBytes(b []byte) (Digest, error) {
	if !ValidLength(b) {
		return Digest{}, xerrors.Newf(xerrors.CodeInvalidHashLength, "hash must be exactly %d bytes (SHA-256), got %d", Size, len(b))
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}

// ParseHex decodes a bare hex string (no 0x prefix, no surrounding
// whitespace) into a Digest. Malformed hex or a wrong decoded length is a
// decode failure, never a zero digest.
func ParseHex(s string) (Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, xerrors.Wrap(xerrors.CodeDecodeFailure, err, "invalid hex digest")
	}
	if len(raw) != Size {
		return Digest{}, xerrors.Newf(xerrors.CodeDecodeFailure, "decoded digest has %d bytes, want %d", len(raw), Size)
	}
	var d Digest
	copy(d[:], raw)
	return d, nil
}

// MarshalText encodes the digest as hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText decodes a hex digest.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
