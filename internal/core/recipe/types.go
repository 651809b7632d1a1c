package recipe

import (
	"fmt"
	"time"
)

// Kind 使用者輸入的種類
type Kind int

const (
	KindText Kind = iota
	KindAudio
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindAudio:
		return "audio"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// NormalizedQuery 正規化後的查詢；Text 與 Image 依 Kind 擇一有效
type NormalizedQuery struct {
	kind    Kind
	text    string
	image   []byte
	caption string
}

// NewTextQuery 以文字（或語音轉寫結果）建立查詢
func NewTextQuery(kind Kind, text string) NormalizedQuery {
	return NormalizedQuery{kind: kind, text: text}
}

// NewImageQuery 以正規化後的圖片建立查詢
func NewImageQuery(image []byte, caption string) NormalizedQuery {
	buf := make([]byte, len(image))
	copy(buf, image)
	return NormalizedQuery{kind: KindImage, image: buf, caption: caption}
}

func (q NormalizedQuery) Kind() Kind      { return q.kind }
func (q NormalizedQuery) Text() string    { return q.text }
func (q NormalizedQuery) Caption() string { return q.caption }

// Image 回傳圖片位元組的副本
func (q NormalizedQuery) Image() []byte {
	if q.image == nil {
		return nil
	}
	buf := make([]byte, len(q.image))
	copy(buf, q.image)
	return buf
}

// Recipe 經驗證的食譜結構
type Recipe struct {
	Title       string  `json:"title"`
	Intro       string  `json:"intro"`
	Ingredients string  `json:"ingredients"`
	Recipe      string  `json:"recipe"`
	Proteins    float64 `json:"proteins"`
	Fats        float64 `json:"fats"`
	Carbs       float64 `json:"carbs"`
	Calories    float64 `json:"calories"`
}

// RecipeRecord 每日食譜快取中的唯一一筆資料
type RecipeRecord struct {
	RecipeText string
	CreatedAt  time.Time
}

// RequestLogEntry 請求稽核紀錄
type RequestLogEntry struct {
	UserIP       string
	InputSize    int
	ResponseText string
}

// Result 單次請求的處理結果
type Result struct {
	// Transcription 文字請求為原文，語音請求為轉寫結果，圖片請求為空
	Transcription string
	// Raw 去除程式碼區塊後的 JSON 文字
	Raw    string
	Recipe Recipe
}
