package recipe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-assistant/internal/pkg/common"
)

const validRecipeJSON = `{"title":"Борщ","intro":"Классика","ingredients":"• свёкла\n• капуста","recipe":"1. Сварить","proteins":3.5,"fats":2,"carbs":6.1,"calories":55}`

func TestValidate(t *testing.T) {
	t.Run("accepts all eight fields", func(t *testing.T) {
		r, cleaned, err := Validate(validRecipeJSON)
		require.NoError(t, err)
		assert.Equal(t, validRecipeJSON, cleaned)
		assert.Equal(t, "Борщ", r.Title)
		assert.Equal(t, "Классика", r.Intro)
		assert.Equal(t, 3.5, r.Proteins)
		assert.Equal(t, 2.0, r.Fats)
		assert.Equal(t, 6.1, r.Carbs)
		assert.Equal(t, 55.0, r.Calories)
	})

	t.Run("field order does not matter", func(t *testing.T) {
		reordered := `{"calories":55,"carbs":6.1,"fats":2,"proteins":3.5,"recipe":"1. Сварить","ingredients":"• свёкла\n• капуста","intro":"Классика","title":"Борщ"}`
		want, _, err := Validate(validRecipeJSON)
		require.NoError(t, err)
		got, _, err := Validate(reordered)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("fenced and unfenced yield the same record", func(t *testing.T) {
		want, _, err := Validate(validRecipeJSON)
		require.NoError(t, err)

		for _, raw := range []string{
			"```json\n" + validRecipeJSON + "\n```",
			"```\n" + validRecipeJSON + "\n```",
			"  ```json\n" + validRecipeJSON + "\n```  \n",
			"```json" + validRecipeJSON + "```",
		} {
			got, cleaned, err := Validate(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, want, got)
			assert.Equal(t, validRecipeJSON, cleaned)
		}
	})

	t.Run("numeric strings are converted", func(t *testing.T) {
		raw := `{"title":"a","intro":"b","ingredients":"none","recipe":"none","proteins":"10","fats":" 4.5 ","carbs":"7,25","calories":"120"}`
		r, _, err := Validate(raw)
		require.NoError(t, err)
		assert.Equal(t, 10.0, r.Proteins)
		assert.Equal(t, 4.5, r.Fats)
		assert.Equal(t, 7.25, r.Carbs)
		assert.Equal(t, 120.0, r.Calories)
	})

	t.Run("text fields need not be strings", func(t *testing.T) {
		raw := `{"title":5,"intro":{"short":"<б>"},"ingredients":["свёкла","капуста"],"recipe":null,"proteins":1,"fats":2,"carbs":3,"calories":4}`
		r, cleaned, err := Validate(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, cleaned)
		assert.Equal(t, "5", r.Title)
		assert.Equal(t, `{"short":"<б>"}`, r.Intro)
		assert.Equal(t, `["свёкла","капуста"]`, r.Ingredients)
		assert.Equal(t, "", r.Recipe)
	})

	t.Run("null text fields are present", func(t *testing.T) {
		raw := `{"title":"a","intro":"b","ingredients":null,"recipe":null,"proteins":1,"fats":2,"carbs":3,"calories":4}`
		r, _, err := Validate(raw)
		require.NoError(t, err)
		assert.Empty(t, r.Ingredients)
		assert.Empty(t, r.Recipe)
	})

	t.Run("extra fields are ignored", func(t *testing.T) {
		raw := `{"title":"a","intro":"b","ingredients":"c","recipe":"d","proteins":1,"fats":2,"carbs":3,"calories":4,"note":"x"}`
		_, _, err := Validate(raw)
		assert.NoError(t, err)
	})
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"not json", "Вот ваш рецепт: борщ", ""},
		{"empty", "", ""},
		{"array", `[1,2,3]`, ""},
		{"null", `null`, ""},
		{"trailing prose", validRecipeJSON + " Приятного аппетита!", ""},
		{"missing title", `{"intro":"b","ingredients":"c","recipe":"d","proteins":1,"fats":2,"carbs":3,"calories":4}`, "title"},
		{"missing calories", `{"title":"a","intro":"b","ingredients":"c","recipe":"d","proteins":1,"fats":2,"carbs":3}`, "calories"},
		{"non numeric string", `{"title":"a","intro":"b","ingredients":"c","recipe":"d","proteins":"много","fats":2,"carbs":3,"calories":4}`, "proteins"},
		{"boolean number", `{"title":"a","intro":"b","ingredients":"c","recipe":"d","proteins":1,"fats":true,"carbs":3,"calories":4}`, "fats"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Validate(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrSchema))

			var schemaErr *common.SchemaError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, tt.field, schemaErr.Field)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence(`{"a":1}`))
	assert.Equal(t, "{\n\"a\":1}", StripCodeFence("```{\n\"a\":1}```"))
}
