package recipe

import (
	"strings"
)

// 所有模板共用的輸出結構與格式要求
const (
	responseRules = "ВАЖНО! ВЕСЬ ответ должен строго соответствовать указанной JSON-структуре, " +
		"начинаться с символа { и быть корректным JSON-объектом. " +
		"Не оборачивай ответ в блок кода ```json. " +
		"Не используй знак решетки (#) для заголовков. " +
		"Поля proteins, fats, carbs и calories — только числа, без кавычек и единиц измерения.\n\n"

	nutritionFields = `  "proteins": количество белков на 100 г блюда (в граммах, только число),
  "fats": количество жиров на 100 г блюда (в граммах, только число),
  "carbs": количество углеводов на 100 г блюда (в граммах, только число),
  "calories": калорийность 100 г блюда (в Ккал, только число)
`

	optionalIngredients = `  "ingredients": "Если ответ содержит рецепт, то ингредиенты списком с маркером • , каждый с новой строки через \n. Иначе none",
  "recipe": "Если ответ содержит рецепт, то подробный пошаговый рецепт с переносами строк через \n. Иначе none",
`

	noCaption = "Нет подписи"
)

// Prompt 送往模型的指令
type Prompt struct {
	Instruction string
	// Image 為 nil 時僅送出文字
	Image []byte
}

// BuildPrompt 依查詢種類挑選模板；同樣輸入永遠得到同樣輸出
func BuildPrompt(q NormalizedQuery) Prompt {
	switch q.Kind() {
	case KindImage:
		if strings.TrimSpace(q.Caption()) != "" {
			return Prompt{Instruction: imageCaptionPrompt(q.Caption()), Image: q.Image()}
		}
		return Prompt{Instruction: imagePrompt(), Image: q.Image()}
	default:
		return Prompt{Instruction: textPrompt(q.Text())}
	}
}

// BuildDailyPrompt 每日食譜模板，不含使用者輸入
func BuildDailyPrompt() Prompt {
	var b strings.Builder
	b.WriteString("Ты — профессиональный шеф-повар. Выбери любое случайное, максимально непредсказуемое блюдо " +
		"одной из популярных кухонь мира, кроме десяти самых известных блюд, и верни ответ строго в формате JSON следующей структуры:\n\n")
	b.WriteString("{\n")
	b.WriteString(`  "title": "Название блюда",` + "\n")
	b.WriteString(`  "intro": "Интересное, яркое описание блюда",` + "\n")
	b.WriteString(`  "ingredients": "Ингредиенты списком с маркером • , каждый с новой строки через \n",` + "\n")
	b.WriteString(`  "recipe": "Подробный пошаговый рецепт с переносами строк через \n",` + "\n")
	b.WriteString(nutritionFields)
	b.WriteString("}\n\n")
	b.WriteString(responseRules)
	return Prompt{Instruction: b.String()}
}

func textPrompt(question string) string {
	var b strings.Builder
	b.WriteString("Ты — профессиональный кулинарный эксперт. Изучи вопрос и верни ответ строго в формате JSON следующей структуры:\n\n")
	b.WriteString("{\n")
	b.WriteString(`  "title": "Название блюда или ответа",` + "\n")
	b.WriteString(`  "intro": "Ответ на вопрос. Если вопрос не связан с кулинарией, обыграй это с лёгким юмором, но не отвечай на него",` + "\n")
	b.WriteString(optionalIngredients)
	b.WriteString(nutritionFields)
	b.WriteString("}\n\n")
	b.WriteString(responseRules)
	b.WriteString("Вопрос: ")
	b.WriteString(question)
	return b.String()
}

func imageHeader(b *strings.Builder) {
	b.WriteString("Ты — профессиональный кулинарный эксперт. Верни ответ строго в формате JSON следующей структуры:\n\n")
	b.WriteString("{\n")
	b.WriteString(`  "title": "Название блюда",` + "\n")
	b.WriteString(`  "intro": "Если на фото готовое блюдо, дай его краткое интересное описание. ` +
		`Если на фото продукты, перечисли их и предложи возможное блюдо. ` +
		`Если объекты на фото несъедобны, обыграй это с лёгким юмором и не пиши рецепт. ` +
		`Если контент неприемлем, тактично уйди от ответа.",` + "\n")
	b.WriteString(optionalIngredients)
	b.WriteString(nutritionFields)
	b.WriteString("}\n\n")
	b.WriteString(responseRules)
	b.WriteString("Формат ответа обязателен, даже если на фото нет еды.\n\n")
}

func imagePrompt() string {
	var b strings.Builder
	imageHeader(&b)
	b.WriteString("Подпись: ")
	b.WriteString(noCaption)
	return b.String()
}

func imageCaptionPrompt(caption string) string {
	var b strings.Builder
	imageHeader(&b)
	b.WriteString("Учти подпись пользователя для более точного ответа.\n\n")
	b.WriteString("Подпись: ")
	b.WriteString(caption)
	return b.String()
}
