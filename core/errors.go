package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）、模块（Module）和消息（Message）
//   - 可包装底层错误（Err），支持 errors.Is / errors.As
//
// 使用场景：
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED, UNAVAILABLE
//   - 事件错误：MALFORMED_EVENT
//   - 模型错误：INCONSISTENT
//   - 内容召回错误：DEGRADED
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "UNAVAILABLE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "engine", "model"）
	Err     error  // 底层错误，可为空
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// IsDomainError 检查错误链中是否包含 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中第一个 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建包装底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	// 通用错误代码
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用（超时、连接失败）
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误

	// 实时推荐引擎错误代码
	ErrorCodeMalformed    = "MALFORMED_EVENT" // 事件缺少必填字段或无法解析
	ErrorCodeInconsistent = "INCONSISTENT"    // 共现计数不对称
	ErrorCodeDegraded     = "DEGRADED"        // 协作方失败，已降级
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 存储模块
	ModuleEngine    = "engine"    // 引擎模块
	ModuleModel     = "model"     // 共现模型模块
	ModuleContent   = "content"   // 内容召回模块
	ModuleTransport = "transport" // 事件传输模块
)

// NewTransientStoreError 表示存储不可达或超时，事件需要由传输层重新投递。
func NewTransientStoreError(op string, err error) *DomainError {
	return WrapDomainError(ModuleStore, ErrorCodeUnavailable, fmt.Sprintf("store: %s failed", op), err)
}

// NewMalformedEventError 表示事件在任何状态变更之前被拒绝。
func NewMalformedEventError(reason string) *DomainError {
	return NewDomainError(ModuleEngine, ErrorCodeMalformed, "malformed event: "+reason)
}

// 通用错误检查函数

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsTransient 检查错误是否允许传输层重试（存储不可达、超时）
func IsTransient(err error) bool { return IsUnavailable(err) }

// IsMalformed 检查错误是否为 MALFORMED_EVENT
func IsMalformed(err error) bool { return hasCode(err, ErrorCodeMalformed) }

// IsInconsistent 检查错误是否为 INCONSISTENT
func IsInconsistent(err error) bool { return hasCode(err, ErrorCodeInconsistent) }

// IsDegraded 检查错误是否为 DEGRADED
func IsDegraded(err error) bool { return hasCode(err, ErrorCodeDegraded) }
