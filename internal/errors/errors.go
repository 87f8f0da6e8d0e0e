// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 会话协议相关
	ErrorTypeMalformedInput ErrorType = "malformed_input"
	ErrorTypeNotReady       ErrorType = "not_ready"
	ErrorTypeCollaborator   ErrorType = "collaborator_failure"
	ErrorTypeFatal          ErrorType = "fatal"

	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeTimeout    ErrorType = "timeout"
)

// 返回给客户端的错误文本
const (
	MsgInvalidMessageFormat = "Invalid message format"
	MsgServerNotReady       = "Server not ready"
	MsgAudioFailed          = "Audio processing failed"
	MsgNoTranscription      = "Could not transcribe audio"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewMalformedInputError 客户端发送了无法解析的数据
func NewMalformedInputError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeMalformedInput, message, originalError)
}

// NewNotReadyError 依赖尚未就绪
func NewNotReadyError() *AppError {
	return NewAppError(ErrorTypeNotReady, MsgServerNotReady, nil)
}

// NewCollaboratorError 语音识别、语音合成或 LLM 调用失败
func NewCollaboratorError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeCollaborator, message, originalError)
}

// NewFatalError 启动阶段不可恢复的错误
func NewFatalError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeFatal, message, originalError)
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// TypeOf 返回错误链中第一个 AppError 的类型
func TypeOf(err error) (ErrorType, bool) {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type, true
	}
	return "", false
}

func isType(err error, t ErrorType) bool {
	got, ok := TypeOf(err)
	return ok && got == t
}

// IsMalformedInputError 检查是否为输入格式错误
func IsMalformedInputError(err error) bool { return isType(err, ErrorTypeMalformedInput) }

// IsNotReadyError 检查是否为未就绪错误
func IsNotReadyError(err error) bool { return isType(err, ErrorTypeNotReady) }

// IsCollaboratorError 检查是否为外部协作方错误
func IsCollaboratorError(err error) bool { return isType(err, ErrorTypeCollaborator) }

// IsFatalError 检查是否为致命错误
func IsFatalError(err error) bool { return isType(err, ErrorTypeFatal) }

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// ClientMessage 返回可以发给客户端的错误文本
func ClientMessage(err error, fallback string) string {
	var appError *AppError
	if errors.As(err, &appError) && appError.Message != "" {
		return appError.Message
	}
	return fallback
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeMalformedInput:
		return "MALFORMED_INPUT"
	case ErrorTypeNotReady:
		return "NOT_READY"
	case ErrorTypeCollaborator:
		return "COLLABORATOR_FAILURE"
	case ErrorTypeFatal:
		return "FATAL"
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 已经是 AppError 时保留类型和客户端文本
		return &AppError{
			Type:    appError.Type,
			Message: appError.Message,
			Err:     fmt.Errorf("%s: %w", message, err),
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
