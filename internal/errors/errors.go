package errors

import (
	stdErrors "errors"
	"fmt"
	"maps"
)

// Code 表示系统内的统一错误码。
type Code string

// Severity 描述错误的严重程度，用于告警。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeQueueFailure          Code = "QUEUE_FAILURE"
	CodeModelFailure          Code = "MODEL_FAILURE"
	CodeModelOutputInvalid    Code = "MODEL_OUTPUT_INVALID"
	CodeUpstreamFailure       Code = "UPSTREAM_FAILURE"
	CodeWalletUnavailable     Code = "WALLET_UNAVAILABLE"
	CodeActionFailed          Code = "ACTION_FAILED"
	CodeTimeout               Code = "TIMEOUT"
)

// Attributes 是错误码的固定行为：默认文案、严重程度、是否重试、是否告警。
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
	Alert     bool
}

var codeTable = map[Code]Attributes{
	CodeUnknown:               {"unknown error", SeverityCritical, false, true},
	CodeInvalidArgument:       {"invalid argument", SeverityInfo, false, false},
	CodeNotFound:              {"resource not found", SeverityInfo, false, false},
	CodeConflict:              {"resource conflict", SeverityWarning, false, false},
	CodeInitializationFailure: {"service not initialized", SeverityWarning, true, true},
	CodeStorageFailure:        {"storage failure", SeverityCritical, true, true},
	CodeQueueFailure:          {"queue failure", SeverityCritical, true, true},
	CodeModelFailure:          {"text generation failed", SeverityWarning, true, true},
	CodeModelOutputInvalid:    {"model output could not be parsed", SeverityInfo, false, false},
	CodeUpstreamFailure:       {"upstream api failure", SeverityWarning, true, false},
	CodeWalletUnavailable:     {"wallet not initialized", SeverityWarning, false, true},
	CodeActionFailed:          {"action handler failed", SeverityWarning, false, false},
	CodeTimeout:               {"operation timed out", SeverityWarning, true, true},
}

// AttributesOf 返回错误码属性，未知错误码按 UNKNOWN 处理。
func AttributesOf(code Code) Attributes {
	if attr, ok := codeTable[code]; ok {
		return attr
	}
	return codeTable[CodeUnknown]
}

// Error 是系统内统一的错误类型。
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]string
}

// Option 定义可选配置。
type Option func(*Error)

// WithMetadata 附加额外信息，告警时原样带出。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// New 创建错误，message 为空时使用错误码的默认文案。
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

// Wrap 在已有错误外包裹统一错误类型。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 按错误码比较。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回附加信息的副本。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	return maps.Clone(e.metadata)
}

func (e *Error) Retryable() bool {
	return e != nil && AttributesOf(e.code).Retryable
}

func (e *Error) ShouldAlert() bool {
	return e != nil && AttributesOf(e.code).Alert
}

func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	return AttributesOf(e.code).Severity
}

// From 尝试从 error 中解析统一错误类型。
func From(err error) (*Error, bool) {
	var target *Error
	if err != nil && stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误码，非统一错误类型视为 UNKNOWN。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// RetryableError 判断任意 error 是否可重试。
func RetryableError(err error) bool {
	e, ok := From(err)
	return ok && e.Retryable()
}

// ShouldAlert 判断是否需要触发告警。
func ShouldAlert(err error) bool {
	e, ok := From(err)
	return ok && e.ShouldAlert()
}

// SeverityOf 返回错误严重程度。
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return codeTable[CodeUnknown].Severity
}
