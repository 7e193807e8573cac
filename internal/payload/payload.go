package payload

import (
	"strings"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/digest"
)

// Body is the kind-specific part of a payload.
type Body interface {
	Kind() Kind
	// CanonicalFields returns the field values in canonical order.
	CanonicalFields() []string
}

// Sealed is a constructed payload of any kind.
type Sealed interface {
	Kind() Kind
	AnchorType() anchor.Type
	Canonical() string
	Hash() string
	HashBytes() (digest.Digest, error)
	Verify() bool
	Fields() Body
}

// Payload pairs a body with the hex digest of its canonical form.
type Payload[B Body] struct {
	Body        B      `json:"fields"`
	PayloadHash string `json:"payload_hash"`
}

// Canonicalize renders body as tag:field1:field2:...
func Canonicalize(body Body) string {
	fields := body.CanonicalFields()
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, string(body.Kind()))
	parts = append(parts, fields...)
	return strings.Join(parts, Separator)
}

// Construct seals body by hashing its canonical form.
func Construct[B Body](body B) *Payload[B] {
	return &Payload[B]{
		Body:        body,
		PayloadHash: digest.SumString(Canonicalize(body)).Hex(),
	}
}

// Kind returns the payload tag.
func (p *Payload[B]) Kind() Kind {
	return p.Body.Kind()
}

// AnchorType returns the namespace this payload is anchored under.
func (p *Payload[B]) AnchorType() anchor.Type {
	return p.Body.Kind().AnchorType()
}

// Canonical rebuilds the canonical string from the current field values.
func (p *Payload[B]) Canonical() string {
	return Canonicalize(p.Body)
}

// Hash returns the stored hex digest.
func (p *Payload[B]) Hash() string {
	return p.PayloadHash
}

// Fields returns the body.
func (p *Payload[B]) Fields() Body {
	return p.Body
}

// Verify recomputes the digest from the current fields and compares it
// with PayloadHash. Any field changed after construction makes it false.
func (p *Payload[B]) Verify() bool {
	if p == nil {
		return false
	}
	return digest.SumString(p.Canonical()).Hex() == p.PayloadHash
}

// HashBytes decodes PayloadHash for registration. A malformed hash is a
// decode error.
func (p *Payload[B]) HashBytes() (digest.Digest, error) {
	return digest.ParseHex(p.PayloadHash)
}

var _ Sealed = (*Payload[ClaimScore])(nil)
