package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-assistant/internal/core/ai"
	"recipe-assistant/internal/infrastructure/config"
	"recipe-assistant/internal/pkg/common"
)

func testConfig(baseURL string) config.OpenAIConfig {
	return config.OpenAIConfig{
		BaseURL:            baseURL,
		APIKey:             "sk-test-key-123456",
		Model:              "gpt-4.1",
		TranscriptionModel: "whisper-1",
		MaxTokens:          4096,
		Temperature:        0.7,
		Timeout:            5 * time.Second,
		RetryWait:          time.Millisecond,
		RetryMaxWait:       5 * time.Millisecond,
	}
}

func chatReply(content string) string {
	b, _ := json.Marshal(ai.Response{
		ID:      "chatcmpl-1",
		Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: content}}},
	})
	return string(b)
}

func TestComplete(t *testing.T) {
	common.InitNopLogger()

	t.Run("sends instruction and inline image", func(t *testing.T) {
		image := []byte{0xff, 0xd8, 0xff}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test-key-123456", r.Header.Get("Authorization"))

			var req ai.ChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "gpt-4.1", req.Model)
			assert.Equal(t, 4096, req.MaxTokens)
			assert.Equal(t, 0.7, req.Temperature)
			require.Len(t, req.Messages, 1)
			assert.Equal(t, "user", req.Messages[0].Role)
			require.Len(t, req.Messages[0].Content, 2)
			assert.Equal(t, "text", req.Messages[0].Content[0].Type)
			assert.Equal(t, "опиши блюдо", req.Messages[0].Content[0].Text)
			assert.Equal(t, "image_url", req.Messages[0].Content[1].Type)
			assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(image), req.Messages[0].Content[1].ImageURL.URL)

			_, _ = io.WriteString(w, chatReply(`{"title":"x"}`))
		}))
		defer srv.Close()

		c := NewClient(testConfig(srv.URL))
		defer c.Close()

		text, err := c.Complete(context.Background(), "опиши блюдо", image)
		require.NoError(t, err)
		assert.Equal(t, `{"title":"x"}`, text)
	})

	t.Run("text only request has a single part", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req ai.ChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Messages[0].Content, 1)
			assert.Nil(t, req.Messages[0].Content[0].ImageURL)
			_, _ = io.WriteString(w, chatReply("ok"))
		}))
		defer srv.Close()

		text, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), "привет", nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
	})

	t.Run("non 200 surfaces status and body", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"rate limited"}}`)
		}))
		defer srv.Close()

		_, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), "x", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrSynthesis))

		var synthErr *common.SynthesisError
		require.True(t, errors.As(err, &synthErr))
		assert.Equal(t, http.StatusTooManyRequests, synthErr.StatusCode)
		assert.Contains(t, synthErr.Body, "rate limited")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retry by default")
	})

	t.Run("retries transient failures when configured", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, chatReply("third time"))
		}))
		defer srv.Close()

		cfg := testConfig(srv.URL)
		cfg.RetryCount = 2
		text, err := NewClient(cfg).Complete(context.Background(), "x", nil)
		require.NoError(t, err)
		assert.Equal(t, "third time", text)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		cfg := testConfig(srv.URL)
		cfg.RetryCount = 3
		_, err := NewClient(cfg).Complete(context.Background(), "x", nil)
		assert.True(t, errors.Is(err, common.ErrSynthesis))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>gateway</html>")
		}))
		defer srv.Close()

		_, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), "x", nil)
		var synthErr *common.SynthesisError
		require.True(t, errors.As(err, &synthErr))
		assert.Equal(t, http.StatusOK, synthErr.StatusCode)
		assert.Contains(t, synthErr.Body, "gateway")
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[]}`)
		}))
		defer srv.Close()

		_, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), "x", nil)
		assert.True(t, errors.Is(err, common.ErrSynthesis))
	})

	t.Run("timeout is a synthesis error", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		cfg := testConfig(srv.URL)
		cfg.Timeout = 50 * time.Millisecond
		_, err := NewClient(cfg).Complete(context.Background(), "x", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrSynthesis))
	})
}

func TestTranscribe(t *testing.T) {
	common.InitNopLogger()

	t.Run("uploads multipart audio", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/audio/transcriptions", r.URL.Path)
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "whisper-1", r.FormValue("model"))

			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, "voice.ogg", hdr.Filename)
			assert.Equal(t, "audio/ogg", hdr.Header.Get("Content-Type"))
			data, _ := io.ReadAll(f)
			assert.Equal(t, "OggS-bytes", string(data))

			_, _ = io.WriteString(w, `{"text":"как приготовить плов"}`)
		}))
		defer srv.Close()

		text, err := NewClient(testConfig(srv.URL)).Transcribe(context.Background(), []byte("OggS-bytes"), "audio/ogg", "voice.ogg")
		require.NoError(t, err)
		assert.Equal(t, "как приготовить плов", text)
	})

	for name, handler := range map[string]http.HandlerFunc{
		"non 200": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"Invalid file format."}}`)
		},
		"missing text": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{}`)
		},
		"blank text": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"text":"   "}`)
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `oops`)
		},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			text, err := NewClient(testConfig(srv.URL)).Transcribe(context.Background(), []byte("corrupt"), "", "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrTranscription))
			assert.Empty(t, text)
		})
	}
}

func TestSanitizeBody(t *testing.T) {
	assert.Equal(t, "[IMAGE_DATA_REMOVED]", sanitizeBody([]byte(`{"url":"data:image/jpeg;base64,AAAA"}`)))
	long := strings.Repeat("a", maxLoggedBody+10)
	assert.Len(t, sanitizeBody([]byte(long)), maxLoggedBody+3)
	assert.Equal(t, "short", sanitizeBody([]byte("short")))
}
