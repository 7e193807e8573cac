package bridge

import (
	"context"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/contract"
	"ProjectAnchor/pkg/anchorclient"
)

// Verifier 查询摘要是否已在注册表中登记。
type Verifier interface {
	Verify(ctx context.Context, typ anchor.Type, hash []byte) (anchor.VerifyResponse, error)
}

// RemoteVerifier 通过 anchorclient 查询远端注册表。
type RemoteVerifier struct {
	client *anchorclient.Client
}

// NewRemoteVerifier 创建远端校验器。
func NewRemoteVerifier(client *anchorclient.Client) *RemoteVerifier {
	return &RemoteVerifier{client: client}
}

// Verify 实现 Verifier。
func (v *RemoteVerifier) Verify(ctx context.Context, typ anchor.Type, hash []byte) (anchor.VerifyResponse, error) {
	resp, err := v.client.Verify(ctx, typ.String(), hash)
	if err != nil {
		return anchor.VerifyResponse{}, wrapRemote(err)
	}
	out := anchor.VerifyResponse{Exists: resp.Exists, HashHex: resp.HashHex}
	if resp.Entry != nil {
		out.Entry = &anchor.Entry{
			HashHex:      resp.Entry.HashHex,
			AnchorType:   typ,
			RegisteredAt: resp.Entry.RegisteredAt,
			Registrant:   resp.Entry.Registrant,
		}
	}
	return out, nil
}

var (
	_ Verifier = (*contract.Handler)(nil)
	_ Verifier = (*RemoteVerifier)(nil)
)
