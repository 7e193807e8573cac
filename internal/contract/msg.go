package contract

import (
	"ProjectAnchor/internal/anchor"
	xerrors "ProjectAnchor/internal/errors"
)

// Env 由宿主账本在每次调用时提供。
type Env struct {
	BlockHeight uint64 `json:"block_height"`
	ChainID     string `json:"chain_id,omitempty"`
}

// MessageInfo 携带调用方身份。
type MessageInfo struct {
	Sender string `json:"sender"`
}

// InstantiateMsg 初始化注册表，未提供 admin 时使用调用方身份。
type InstantiateMsg struct {
	Admin *string `json:"admin,omitempty"`
}

// HashMsg 携带原始摘要字节，JSON 中以 base64 编码。
type HashMsg struct {
	Hash []byte `json:"hash"`
}

// ExecuteMsg 是注册请求，三个字段中必须恰好设置一个。
type ExecuteMsg struct {
	RegisterRoot          *HashMsg `json:"register_root,omitempty"`
	RegisterClaimScore    *HashMsg `json:"register_claim_score,omitempty"`
	RegisterEquationProof *HashMsg `json:"register_equation_proof,omitempty"`
}

// NewRegisterMsg 构造指定命名空间的注册消息。
func NewRegisterMsg(typ anchor.Type, hash []byte) ExecuteMsg {
	msg := HashMsg{Hash: hash}
	switch typ {
	case anchor.TypeRoot:
		return ExecuteMsg{RegisterRoot: &msg}
	case anchor.TypeClaimScore:
		return ExecuteMsg{RegisterClaimScore: &msg}
	case anchor.TypeEquationProof:
		return ExecuteMsg{RegisterEquationProof: &msg}
	}
	return ExecuteMsg{}
}

// Variant 返回被选中的命名空间与摘要。
func (m ExecuteMsg) Variant() (anchor.Type, []byte, error) {
	var (
		typ   anchor.Type
		hash  []byte
		count int
	)
	if m.RegisterRoot != nil {
		typ, hash = anchor.TypeRoot, m.RegisterRoot.Hash
		count++
	}
	if m.RegisterClaimScore != nil {
		typ, hash = anchor.TypeClaimScore, m.RegisterClaimScore.Hash
		count++
	}
	if m.RegisterEquationProof != nil {
		typ, hash = anchor.TypeEquationProof, m.RegisterEquationProof.Hash
		count++
	}
	if count != 1 {
		return 0, nil, xerrors.Newf(xerrors.CodeInvalidArgument, "execute message must set exactly one variant, got %d", count)
	}
	return typ, hash, nil
}

// GetAnchorQuery 按字符串类型查询任意命名空间。
type GetAnchorQuery struct {
	Hash       []byte `json:"hash"`
	AnchorType string `json:"anchor_type"`
}

// Empty 对应无参数查询。
type Empty struct{}

// QueryMsg 是只读请求，五个字段中必须恰好设置一个。
type QueryMsg struct {
	VerifyRoot          *HashMsg        `json:"verify_root,omitempty"`
	VerifyClaimScore    *HashMsg        `json:"verify_claim_score,omitempty"`
	VerifyEquationProof *HashMsg        `json:"verify_equation_proof,omitempty"`
	GetConfig           *Empty          `json:"get_config,omitempty"`
	GetAnchor           *GetAnchorQuery `json:"get_anchor,omitempty"`
}

// NewVerifyMsg 构造指定命名空间的校验查询。
func NewVerifyMsg(typ anchor.Type, hash []byte) QueryMsg {
	msg := HashMsg{Hash: hash}
	switch typ {
	case anchor.TypeRoot:
		return QueryMsg{VerifyRoot: &msg}
	case anchor.TypeClaimScore:
		return QueryMsg{VerifyClaimScore: &msg}
	case anchor.TypeEquationProof:
		return QueryMsg{VerifyEquationProof: &msg}
	}
	return QueryMsg{}
}

func (m QueryMsg) count() int {
	n := 0
	for _, set := range []bool{m.VerifyRoot != nil, m.VerifyClaimScore != nil, m.VerifyEquationProof != nil, m.GetConfig != nil, m.GetAnchor != nil} {
		if set {
			n++
		}
	}
	return n
}

// Attribute 是响应中供外部索引器读取的键值对。
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response 是实例化与执行的结果。
type Response struct {
	Attributes []Attribute `json:"attributes"`
}

func (r *Response) add(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

// Attr 返回指定键的属性值。
func (r Response) Attr(key string) (string, bool) {
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}
