package common

import (
	"errors"
	"fmt"
	"net/http"
)

// CustomError 定義帶有 HTTP 狀態碼的錯誤
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 對外顯示的錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// 預定義錯誤代碼
const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"
	ErrCodeBodyTooLarge    = "BODY_TOO_LARGE"
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodeTranscription   = "TRANSCRIPTION_FAILED"
	ErrCodeImageDecode     = "IMAGE_DECODE_FAILED"
	ErrCodeSynthesis       = "SYNTHESIS_FAILED"
	ErrCodeSchema          = "SCHEMA_INVALID"
	ErrCodeStorage         = "STORAGE_UNAVAILABLE"
)

// 管線各階段的錯誤種類，以 errors.Is 判斷
var (
	ErrTranscription = errors.New("transcription failed")
	ErrImageDecode   = errors.New("image decode failed")
	ErrSynthesis     = errors.New("synthesis failed")
	ErrSchema        = errors.New("response schema invalid")
	ErrStorage       = errors.New("storage unavailable")
	ErrInvalidInput  = errors.New("invalid input")
	ErrQueueFull     = errors.New("queue is full")
	ErrCacheMiss     = errors.New("cache miss")
)

// SynthesisError 模型服務回傳非 200 或無法解析的回應
type SynthesisError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SynthesisError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("synthesis failed (status %d): %s", e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("synthesis failed: %v", e.Err)
	}
	return "synthesis failed"
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Is 讓 errors.Is(err, ErrSynthesis) 成立
func (e *SynthesisError) Is(target error) bool {
	return target == ErrSynthesis
}

// SchemaError 模型輸出不符合固定的 JSON 結構
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("response schema invalid: field %q %s", e.Field, e.Reason)
	}
	return "response schema invalid: " + e.Reason
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// StatusFor 將錯誤對應為 HTTP 狀態碼：輸入問題 4xx，上游與儲存問題 5xx
func StatusFor(err error) int {
	var custom *CustomError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &custom) && custom.Status != 0:
		return custom.Status
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrImageDecode):
		return http.StatusBadRequest
	case errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeFor 取得錯誤代碼（用於日誌與指標標籤）
func CodeFor(err error) string {
	var custom *CustomError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &custom) && custom.Code != "":
		return custom.Code
	case errors.Is(err, ErrInvalidInput):
		return ErrCodeInvalidRequest
	case errors.Is(err, ErrTranscription):
		return ErrCodeTranscription
	case errors.Is(err, ErrImageDecode):
		return ErrCodeImageDecode
	case errors.Is(err, ErrSynthesis):
		return ErrCodeSynthesis
	case errors.Is(err, ErrSchema):
		return ErrCodeSchema
	case errors.Is(err, ErrStorage):
		return ErrCodeStorage
	case errors.Is(err, ErrQueueFull):
		return ErrCodeTooManyRequests
	default:
		return ErrCodeInternalError
	}
}
