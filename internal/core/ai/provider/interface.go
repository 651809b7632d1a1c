package provider

import (
	"context"
)

// Provider 定義模型服務介面：語音轉寫與單次（非串流）生成
type Provider interface {
	// Complete 送出指令與可選的單張圖片，回傳模型原始文字
	Complete(ctx context.Context, instruction string, image []byte) (string, error)

	// Transcribe 將語音轉為文字
	Transcribe(ctx context.Context, audio []byte, contentType, filename string) (string, error)

	// GetModel 獲取當前使用的模型名稱
	GetModel() string

	// Close 關閉提供者連接
	Close() error
}
