package bridge

import (
	"ProjectAnchor/internal/anchor"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/payload"
)

// Status 表示回执在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusDryRun    Status = "dry_run"
)

// Receipt 记录一次锚定提交。
type Receipt struct {
	ID          string       `json:"id"`
	AnchorType  anchor.Type  `json:"anchor_type"`
	PayloadKind payload.Kind `json:"payload_kind"`
	PayloadHash string       `json:"payload_hash"`
	Canonical   string       `json:"canonical"`
	Network     string       `json:"network"`
	Endpoint    string       `json:"endpoint,omitempty"`
	Status      Status       `json:"status"`
	Attempts    int          `json:"attempts"`
	MaxAttempts int          `json:"max_attempts"`
	TxRef       string       `json:"tx_ref,omitempty"`
	OnChainHash string       `json:"on_chain_hash,omitempty"`
	BlockHeight uint64       `json:"block_height,omitempty"`
	Registrant  string       `json:"registrant,omitempty"`
	LastError   string       `json:"last_error,omitempty"`
	ErrorCode   string       `json:"error_code,omitempty"`
	CreatedAt   int64        `json:"created_at"`
	UpdatedAt   int64        `json:"updated_at"`
}

// Terminal 判断回执是否已结束处理。
func (r *Receipt) Terminal() bool {
	switch r.Status {
	case StatusConfirmed, StatusDryRun:
		return true
	case StatusFailed:
		return r.Attempts >= r.MaxAttempts
	}
	return false
}

// Confirmation 是提交器返回的结果。
type Confirmation struct {
	Status      Status
	TxRef       string
	OnChainHash string
	BlockHeight uint64
	Registrant  string
}

const (
	CodeReceiptNotFound  xerrors.Code = "RECEIPT_NOT_FOUND"
	CodeReceiptConflict  xerrors.Code = "RECEIPT_CONFLICT"
	CodeReceiptSettled   xerrors.Code = "RECEIPT_SETTLED"
	CodeReceiptExhausted xerrors.Code = "RECEIPT_RETRIES_EXHAUSTED"
	CodeBridgePublish    xerrors.Code = "BRIDGE_PUBLISH_FAILED"
	CodeBridgeSubmit     xerrors.Code = "BRIDGE_SUBMIT_FAILED"
	CodeUnknownNetwork   xerrors.Code = "UNKNOWN_NETWORK"
)

var (
	// ErrReceiptNotFound 表示回执不存在。
	ErrReceiptNotFound = xerrors.New(CodeReceiptNotFound, "receipt not found")
	// ErrReceiptConflict 表示回执当前状态不允许该操作。
	ErrReceiptConflict = xerrors.New(CodeReceiptConflict, "receipt conflict")
	// ErrReceiptSettled 表示回执已确认。
	ErrReceiptSettled = xerrors.New(CodeReceiptSettled, "receipt already settled")
	// ErrReceiptExhausted 表示重试次数已耗尽。
	ErrReceiptExhausted = xerrors.New(CodeReceiptExhausted, "receipt retries exhausted")
)

func init() {
	xerrors.Register(CodeReceiptNotFound, xerrors.Attributes{
		Message:  "receipt not found",
		Kind:     xerrors.KindAbsence,
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeReceiptConflict, xerrors.Attributes{
		Message:  "receipt conflict",
		Kind:     xerrors.KindConflict,
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeReceiptSettled, xerrors.Attributes{
		Message:  "receipt already settled",
		Kind:     xerrors.KindConflict,
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeReceiptExhausted, xerrors.Attributes{
		Message:  "receipt retries exhausted",
		Kind:     xerrors.KindInternal,
		Severity: xerrors.SeverityCritical,
	})
	xerrors.Register(CodeBridgePublish, xerrors.Attributes{
		Message:   "failed to publish receipt",
		Kind:      xerrors.KindInternal,
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
	})
	xerrors.Register(CodeBridgeSubmit, xerrors.Attributes{
		Message:   "anchor submission failed",
		Kind:      xerrors.KindInternal,
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
	})
	xerrors.Register(CodeUnknownNetwork, xerrors.Attributes{
		Message:  "unknown bridge network",
		Kind:     xerrors.KindValidation,
		Severity: xerrors.SeverityInfo,
	})
}

// IsValidStatus 检查状态取值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusSubmitted, StatusConfirmed, StatusFailed, StatusDryRun:
		return true
	default:
		return false
	}
}

func cloneReceipt(r *Receipt) *Receipt {
	clone := *r
	return &clone
}
