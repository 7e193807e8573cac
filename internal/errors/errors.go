package errors

import (
	stdErrors "errors"
	"fmt"
	"sync"
)

// Code 表示系统内的统一错误码。
type Code string

// Severity 描述错误的严重程度，用于告警和审计。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Kind 将错误码归入校验、解码、缺失等大类，供边界层映射响应。
type Kind string

const (
	KindValidation Kind = "validation"
	KindDecode     Kind = "decode"
	KindAbsence    Kind = "absence"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// Attributes 为错误码提供默认行为。
type Attributes struct {
	Message   string
	Kind      Kind
	Severity  Severity
	Retryable bool
}

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeInvalidHashLength     Code = "INVALID_HASH_LENGTH"
	CodeUnknownAnchorType     Code = "UNKNOWN_ANCHOR_TYPE"
	CodeDecodeFailure         Code = "DECODE_FAILURE"
	CodeNotFound              Code = "NOT_FOUND"
	CodeAlreadyAnchored       Code = "ALREADY_ANCHORED"
	CodeAlreadyInitialized    Code = "ALREADY_INITIALIZED"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeQueueFailure          Code = "QUEUE_FAILURE"
	CodeChainFailure          Code = "CHAIN_FAILURE"
	CodeNotSupported          Code = "NOT_SUPPORTED"
	CodeTimeout               Code = "TIMEOUT"
)

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:               {Message: "unknown error", Kind: KindInternal, Severity: SeverityCritical},
		CodeInvalidArgument:       {Message: "invalid argument", Kind: KindValidation, Severity: SeverityInfo},
		CodeInvalidHashLength:     {Message: "hash must be exactly 32 bytes (SHA-256)", Kind: KindValidation, Severity: SeverityInfo},
		CodeUnknownAnchorType:     {Message: "unknown anchor type", Kind: KindValidation, Severity: SeverityInfo},
		CodeDecodeFailure:         {Message: "malformed digest encoding", Kind: KindDecode, Severity: SeverityWarning},
		CodeNotFound:              {Message: "resource not found", Kind: KindAbsence, Severity: SeverityInfo},
		CodeAlreadyAnchored:       {Message: "hash already anchored", Kind: KindConflict, Severity: SeverityInfo},
		CodeAlreadyInitialized:    {Message: "registry already instantiated", Kind: KindConflict, Severity: SeverityWarning},
		CodeInitializationFailure: {Message: "registry not initialized", Kind: KindInternal, Severity: SeverityWarning, Retryable: true},
		CodeStorageFailure:        {Message: "storage failure", Kind: KindInternal, Severity: SeverityCritical, Retryable: true},
		CodeQueueFailure:          {Message: "queue failure", Kind: KindInternal, Severity: SeverityCritical, Retryable: true},
		CodeChainFailure:          {Message: "chain access failure", Kind: KindInternal, Severity: SeverityWarning, Retryable: true},
		CodeNotSupported:          {Message: "operation not supported", Kind: KindInternal, Severity: SeverityInfo},
		CodeTimeout:               {Message: "operation timed out", Kind: KindInternal, Severity: SeverityWarning, Retryable: true},
	}
)

// Register 允许业务模块在初始化阶段注册新的错误码描述。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf 返回错误码对应的属性。若未注册则返回 UNKNOWN 的属性。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error 是系统内统一的错误类型。
type Error struct {
	code      Code
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool
	severity  *Severity
}

// Option 定义可选配置。
type Option func(*Error)

// WithMetadata 附加额外信息。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithRetryable 指定错误是否可重试。
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithSeverity 覆盖默认严重程度。
func WithSeverity(sev Severity) Option {
	return func(e *Error) {
		e.severity = &sev
	}
}

// New 创建一个新的错误实例。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Newf 使用格式化信息创建错误。
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 在已有错误外包裹统一错误类型。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Unwrap 实现 errors.Unwrap。
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 允许通过 errors.Is 判断是否相同错误码。
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code 返回错误码。
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回错误信息。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回附加信息。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// Kind 返回错误所属的大类。
func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return AttributesOf(e.code).Kind
}

// Retryable 判断是否可重试。
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if e.retryable != nil {
		return *e.retryable
	}
	return AttributesOf(e.code).Retryable
}

// Severity 返回错误严重程度。
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	if e.severity != nil {
		return *e.severity
	}
	return AttributesOf(e.code).Severity
}

// From 尝试从 error 中解析统一错误类型。
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误对应的错误码。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// KindOf 返回错误对应的大类，非统一错误视为内部错误。
func KindOf(err error) Kind {
	if e, ok := From(err); ok {
		return e.Kind()
	}
	return KindInternal
}

// IsValidation 判断错误是否为调用方输入校验失败。
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

// RetryableError 判断任意 error 是否可重试。
func RetryableError(err error) bool {
	if e, ok := From(err); ok {
		return e.Retryable()
	}
	return false
}

// SeverityOf 返回错误严重程度。
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}
