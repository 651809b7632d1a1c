package recipe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	fields := append(append([]string{}, textFields...), numericFields...)

	prompts := map[string]Prompt{
		"text":          BuildPrompt(NewTextQuery(KindText, "как сварить борщ?")),
		"audio":         BuildPrompt(NewTextQuery(KindAudio, "что приготовить из курицы")),
		"image":         BuildPrompt(NewImageQuery([]byte{0xff, 0xd8}, "")),
		"image caption": BuildPrompt(NewImageQuery([]byte{0xff, 0xd8}, "мой ужин")),
		"daily":         BuildDailyPrompt(),
	}

	for name, p := range prompts {
		t.Run(name, func(t *testing.T) {
			for _, f := range fields {
				assert.Contains(t, p.Instruction, `"`+f+`"`)
			}
			assert.Contains(t, p.Instruction, "начинаться с символа {")
			assert.Contains(t, p.Instruction, "(#)")
		})
	}

	assert.True(t, strings.HasSuffix(prompts["text"].Instruction, "Вопрос: как сварить борщ?"))
	assert.Nil(t, prompts["text"].Image)
	assert.True(t, strings.HasSuffix(prompts["image"].Instruction, "Подпись: Нет подписи"))
	assert.True(t, strings.HasSuffix(prompts["image caption"].Instruction, "Подпись: мой ужин"))
	assert.Equal(t, []byte{0xff, 0xd8}, prompts["image caption"].Image)
	assert.Nil(t, prompts["daily"].Image)
}

func TestBuildPromptDeterministic(t *testing.T) {
	q := NewImageQuery([]byte{1, 2, 3}, "суп")
	assert.Equal(t, BuildPrompt(q), BuildPrompt(q))
	assert.Equal(t, BuildDailyPrompt(), BuildDailyPrompt())
}

func TestNormalizedQueryImageIsCopied(t *testing.T) {
	src := []byte{1, 2, 3}
	q := NewImageQuery(src, "")
	src[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, q.Image())

	img := q.Image()
	img[1] = 9
	assert.Equal(t, []byte{1, 2, 3}, q.Image())
}
