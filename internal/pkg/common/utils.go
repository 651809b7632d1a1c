package common

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// HashBytes 計算 SHA-256 並以十六進位輸出
func HashBytes(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// WriteError 以 {"error": message} 格式回應錯誤並中止後續處理
func WriteError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// WriteErrorFrom 依錯誤種類決定狀態碼；CustomError 使用其 Message 作為對外訊息
func WriteErrorFrom(c *gin.Context, err error, fallback string) {
	message := fallback
	var custom *CustomError
	if errors.As(err, &custom) && custom.Message != "" {
		message = custom.Message
	}
	_ = c.Error(err)
	WriteError(c, StatusFor(err), message)
}
