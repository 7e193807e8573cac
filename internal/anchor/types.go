package anchor

import (
	xerrors "ProjectAnchor/internal/errors"
)

// Type 标识锚定条目所在的命名空间，只有三个合法取值。
type Type uint8

const (
	TypeRoot Type = iota + 1
	TypeClaimScore
	TypeEquationProof
)

var typeNames = [...]string{
	TypeRoot:          "root",
	TypeClaimScore:    "claim_score",
	TypeEquationProof: "equation_proof",
}

var typeNamespaces = [...]string{
	TypeRoot:          "roots",
	TypeClaimScore:    "claim_scores",
	TypeEquationProof: "equation_proofs",
}

// Types 返回全部锚定类型，顺序固定。
func Types() []Type {
	return []Type{TypeRoot, TypeClaimScore, TypeEquationProof}
}

// ParseType 将外部字符串解析为锚定类型，未知取值返回 UNKNOWN_ANCHOR_TYPE。
func ParseType(raw string) (Type, error) {
	switch raw {
	case "root":
		return TypeRoot, nil
	case "claim_score":
		return TypeClaimScore, nil
	case "equation_proof":
		return TypeEquationProof, nil
	default:
		return 0, xerrors.New(xerrors.CodeUnknownAnchorType, "Unknown anchor type", xerrors.WithMetadata("anchor_type", raw))
	}
}

// Valid 判断取值是否属于已知类型。
func (t Type) Valid() bool {
	return t >= TypeRoot && t <= TypeEquationProof
}

// String 返回类型的外部名称。
func (t Type) String() string {
	if !t.Valid() {
		return "unknown"
	}
	return typeNames[t]
}

// Namespace 返回存储分区名。
func (t Type) Namespace() string {
	if !t.Valid() {
		return ""
	}
	return typeNamespaces[t]
}

// Action 返回注册响应中使用的 action 属性值。
func (t Type) Action() string {
	return "register_" + t.String()
}

// MarshalText 以外部名称编码。
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, xerrors.New(xerrors.CodeUnknownAnchorType, "")
	}
	return []byte(t.String()), nil
}

// UnmarshalText 从外部名称解码。
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
