// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 指令相关错误
	ErrorCommandTextMissing  = "COMMAND_TEXT_MISSING"
	ErrorCommandUnrecognized = "COMMAND_UNRECOGNIZED"

	// 对话相关错误
	ErrorUnknownEvent = "UNKNOWN_EVENT"

	// 服务状态
	ErrorServerNotReady     = "SERVER_NOT_READY"
	ErrorSessionStoreFailed = "SESSION_STORE_FAILED"
)
