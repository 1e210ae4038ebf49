package errors

import "net/http"

// 会话、数据流与持久化开关相关的错误
var (
	ErrInvalidCredentials = New(http.StatusUnauthorized, "invalid device id or password")
	ErrVerification       = New(http.StatusUnauthorized, "session verification failed")
	ErrRedirectLogin      = New(http.StatusUnauthorized, "login required")
	ErrForbidden          = New(http.StatusForbidden, "admin role required")
	ErrToggleInFlight     = New(http.StatusConflict, "persistence toggle already in flight")
	ErrStreamParse        = New(http.StatusUnprocessableEntity, "invalid stream sample")
	ErrStreamConnection   = New(http.StatusServiceUnavailable, "stream connection failed")
	ErrPersistenceToggle  = New(http.StatusBadGateway, "persistence toggle failed")
	ErrNotFound           = New(http.StatusNotFound, "not found")
)

// AuthError 令牌交换失败。凭据被拒绝时为 ErrInvalidCredentials，其余情况保留后端状态码
func AuthError(status int, cause error) *Error {
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return ErrInvalidCredentials.WithCause(cause)
	}
	if status == 0 {
		status = http.StatusBadGateway
	}
	return New(status, "authentication failed").WithCause(cause)
}

func VerificationError(reason string, cause error) *Error {
	return ErrVerification.WithMetadata(map[string]string{"reason": reason}).WithCause(cause)
}

func StreamParseError(payload string, cause error) *Error {
	return ErrStreamParse.WithMetadata(map[string]string{"payload": payload}).WithCause(cause)
}

func StreamConnectionError(deviceID string, cause error) *Error {
	return ErrStreamConnection.WithMetadata(map[string]string{"device_id": deviceID}).WithCause(cause)
}

func PersistenceToggleError(deviceID string, enable bool, cause error) *Error {
	e := "false"
	if enable {
		e = "true"
	}
	return ErrPersistenceToggle.WithMetadata(map[string]string{"device_id": deviceID, "enable": e}).WithCause(cause)
}

// HTTPError 将后端非 2xx 响应映射为错误
func HTTPError(status int, body string) *Error {
	if status == 0 {
		status = UnknownCode
	}
	err := New(status, "%s", http.StatusText(status))
	if body != "" {
		err = err.WithMetadata(map[string]string{"body": body})
	}
	return err
}
