package recipe

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"recipe-assistant/internal/pkg/common"
)

const (
	fenceMarker = "```"
)

var (
	textFields    = []string{"title", "intro", "ingredients", "recipe"}
	numericFields = []string{"proteins", "fats", "carbs", "calories"}
)

// StripCodeFence 移除模型偶爾加上的 ```json ... ``` 外框；沒有外框時原樣回傳
func StripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, fenceMarker) {
		return text
	}

	// 開頭標記連同語言標籤一併移除
	text = strings.TrimPrefix(text, fenceMarker)
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		if lang := strings.TrimSpace(text[:nl]); lang == "" || isFenceLanguage(lang) {
			text = text[nl+1:]
		}
	} else {
		text = strings.TrimPrefix(text, "json")
	}

	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, fenceMarker)
	return strings.TrimSpace(text)
}

func isFenceLanguage(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// Validate 去除外框後解析 JSON 並檢查八個固定欄位
func Validate(raw string) (Recipe, string, error) {
	cleaned := StripCodeFence(raw)

	var fields map[string]interface{}
	if err := common.ParseJSON(cleaned, &fields); err != nil {
		return Recipe{}, cleaned, &common.SchemaError{Reason: "not a JSON object: " + err.Error()}
	}
	if fields == nil {
		return Recipe{}, cleaned, &common.SchemaError{Reason: "not a JSON object"}
	}

	var r Recipe
	texts := []*string{&r.Title, &r.Intro, &r.Ingredients, &r.Recipe}
	for i, name := range textFields {
		v, ok := fields[name]
		if !ok {
			return Recipe{}, cleaned, &common.SchemaError{Field: name, Reason: "is missing"}
		}
		s, err := toText(v)
		if err != nil {
			return Recipe{}, cleaned, &common.SchemaError{Field: name, Reason: "cannot be encoded: " + err.Error()}
		}
		*texts[i] = s
	}

	numbers := []*float64{&r.Proteins, &r.Fats, &r.Carbs, &r.Calories}
	for i, name := range numericFields {
		v, ok := fields[name]
		if !ok {
			return Recipe{}, cleaned, &common.SchemaError{Field: name, Reason: "is missing"}
		}
		n, err := toNumber(v)
		if err != nil {
			return Recipe{}, cleaned, &common.SchemaError{Field: name, Reason: "must be a number"}
		}
		*numbers[i] = n
	}

	return r, cleaned, nil
}

// toText 字串原樣保留，null 為空字串，其他型別保留緊湊的 JSON 文字
func toText(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// toNumber 接受 JSON 數字或可轉換為數字的字串
func toNumber(v interface{}) (float64, error) {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = strings.TrimSpace(strings.Replace(n, ",", ".", 1))
	default:
		return 0, strconv.ErrSyntax
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrRange
	}
	return f, nil
}
