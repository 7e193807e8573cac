package payload

import (
	"bytes"
	"encoding/json"

	xerrors "ProjectAnchor/internal/errors"
)

// Build decodes kind-specific fields from JSON and seals them. Unknown
// fields are rejected so typos cannot silently drop data from the digest.
// Scores given as strings are re-rendered with FormatFixed8, so equal
// values always seal to the same canonical form.
func Build(kind Kind, fields json.RawMessage) (Sealed, error) {
	switch kind {
	case KindMerkleRoot:
		return build[MerkleRoot](fields)
	case KindClaimScore:
		return build[ClaimScore](fields)
	case KindEquationProof:
		return build[EquationProof](fields)
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "unknown payload kind", xerrors.WithMetadata("kind", string(kind)))
	}
}

// VerifyJSON checks a received payload hash against received fields.
func VerifyJSON(kind Kind, fields json.RawMessage, payloadHash string) (bool, error) {
	var sealed Sealed
	var err error
	switch kind {
	case KindMerkleRoot:
		sealed, err = attach[MerkleRoot](fields, payloadHash)
	case KindClaimScore:
		sealed, err = attach[ClaimScore](fields, payloadHash)
	case KindEquationProof:
		sealed, err = attach[EquationProof](fields, payloadHash)
	default:
		return false, xerrors.New(xerrors.CodeInvalidArgument, "unknown payload kind", xerrors.WithMetadata("kind", string(kind)))
	}
	if err != nil {
		return false, err
	}
	return sealed.Verify(), nil
}

// normalizer is implemented by bodies carrying fixed-point scores.
type normalizer[B Body] interface {
	normalized() (B, error)
}

func build[B Body](fields json.RawMessage) (Sealed, error) {
	body, err := decodeBody[B](fields)
	if err != nil {
		return nil, err
	}
	if n, ok := any(body).(normalizer[B]); ok {
		if body, err = n.normalized(); err != nil {
			return nil, err
		}
	}
	return Construct(body), nil
}

func attach[B Body](fields json.RawMessage, payloadHash string) (Sealed, error) {
	body, err := decodeBody[B](fields)
	if err != nil {
		return nil, err
	}
	return &Payload[B]{Body: body, PayloadHash: payloadHash}, nil
}

func decodeBody[B Body](fields json.RawMessage) (B, error) {
	var body B
	if len(bytes.TrimSpace(fields)) == 0 {
		return body, xerrors.New(xerrors.CodeInvalidArgument, "payload fields are required")
	}
	dec := json.NewDecoder(bytes.NewReader(fields))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return body, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid payload fields")
	}
	return body, nil
}
