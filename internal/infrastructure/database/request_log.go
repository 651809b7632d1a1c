package database

import (
	"context"
	"fmt"
	"time"

	"recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/pkg/common"
)

// RequestLog 請求稽核紀錄，只寫不讀
type RequestLog struct {
	ID           uint      `gorm:"primaryKey"`
	UserIP       string    `gorm:"size:64"`
	ImageSize    int       `gorm:"not null;default:0"`
	ResponseText string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName 表名
func (RequestLog) TableName() string {
	return "request_logs"
}

// RequestLogStore 請求稽核紀錄
type RequestLogStore struct {
	db *DB
}

// NewRequestLogStore 創建請求稽核紀錄
func NewRequestLogStore(db *DB) *RequestLogStore {
	return &RequestLogStore{db: db}
}

// Append 新增一筆紀錄
func (s *RequestLogStore) Append(ctx context.Context, entry recipe.RequestLogEntry) error {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Create(&RequestLog{
		UserIP:       entry.UserIP,
		ImageSize:    entry.InputSize,
		ResponseText: entry.ResponseText,
		CreatedAt:    time.Now().UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("%w: failed to append request log: %v", common.ErrStorage, err)
	}
	return nil
}
