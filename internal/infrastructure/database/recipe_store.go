package database

import (
	"context"
	"fmt"
	"time"

	"recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/pkg/common"

	"gorm.io/gorm"
)

// DailyRecipe 每日食譜表，任何時刻最多一筆
type DailyRecipe struct {
	ID         uint      `gorm:"primaryKey"`
	RecipeText string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName 表名
func (DailyRecipe) TableName() string {
	return "daily_recipe"
}

// RecipeStore 每日食譜快取
type RecipeStore struct {
	db *DB
}

// NewRecipeStore 創建每日食譜快取
func NewRecipeStore(db *DB) *RecipeStore {
	return &RecipeStore{db: db}
}

// Get 讀取最新的一筆；表為空時回傳 nil
func (s *RecipeStore) Get(ctx context.Context) (*recipe.RecipeRecord, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	var rows []DailyRecipe
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read daily recipe: %v", common.ErrStorage, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return &recipe.RecipeRecord{
		RecipeText: rows[0].RecipeText,
		CreatedAt:  rows[0].CreatedAt,
	}, nil
}

// Replace 在單一交易中清空並寫入新的一筆
func (s *RecipeStore) Replace(ctx context.Context, text string) error {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 序列化並行的寫入者；讀取者不受影響
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("LOCK TABLE daily_recipe IN EXCLUSIVE MODE").Error; err != nil {
				return err
			}
		}
		if err := tx.Where("1 = 1").Delete(&DailyRecipe{}).Error; err != nil {
			return err
		}
		return tx.Create(&DailyRecipe{
			RecipeText: text,
			CreatedAt:  time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: failed to replace daily recipe: %v", common.ErrStorage, err)
	}
	return nil
}
