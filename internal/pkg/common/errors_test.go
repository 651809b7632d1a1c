package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusAndCodeFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"nil", nil, http.StatusOK, ""},
		{"invalid input", fmt.Errorf("%w: empty text", ErrInvalidInput), http.StatusBadRequest, ErrCodeInvalidRequest},
		{"image decode", fmt.Errorf("%w: unknown format", ErrImageDecode), http.StatusBadRequest, ErrCodeImageDecode},
		{"transcription", fmt.Errorf("%w: status 500", ErrTranscription), http.StatusInternalServerError, ErrCodeTranscription},
		{"synthesis", &SynthesisError{StatusCode: 429, Body: "slow down"}, http.StatusInternalServerError, ErrCodeSynthesis},
		{"schema", &SchemaError{Field: "fats", Reason: "is not a number"}, http.StatusInternalServerError, ErrCodeSchema},
		{"storage", fmt.Errorf("%w: closed", ErrStorage), http.StatusInternalServerError, ErrCodeStorage},
		{"queue full", ErrQueueFull, http.StatusServiceUnavailable, ErrCodeTooManyRequests},
		{"custom", NewError("X", "nope", http.StatusTeapot, nil), http.StatusTeapot, "X"},
		{"body too large", NewError(ErrCodeBodyTooLarge, "Request body too large", http.StatusRequestEntityTooLarge, &http.MaxBytesError{Limit: 64}), http.StatusRequestEntityTooLarge, ErrCodeBodyTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusFor(tt.err))
			assert.Equal(t, tt.code, CodeFor(tt.err))
		})
	}
}

func TestSynthesisErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("complete: %w", &SynthesisError{Err: context.DeadlineExceeded})

	assert.True(t, errors.Is(err, ErrSynthesis))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	var se *SynthesisError
	assert.True(t, errors.As(err, &se))
	assert.Zero(t, se.StatusCode)
}

func TestSchemaErrorMessage(t *testing.T) {
	err := &SchemaError{Field: "title", Reason: "is missing"}
	assert.Equal(t, `response schema invalid: field "title" is missing`, err.Error())
	assert.True(t, errors.Is(err, ErrSchema))
}
