package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"recipe-assistant/internal/core/ai"
	"recipe-assistant/internal/infrastructure/config"
	"recipe-assistant/internal/infrastructure/monitoring"
	"recipe-assistant/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	chatPath          = "/chat/completions"
	transcriptionPath = "/audio/transcriptions"

	// 錯誤內容寫入日誌前的截斷長度
	maxLoggedBody = 512
)

// Client 相容 OpenAI API 的模型客戶端
type Client struct {
	config config.OpenAIConfig
	chat   *resty.Client
	audio  *resty.Client
}

// NewClient 創建客戶端；兩個 resty 客戶端共用同一個連線池
func NewClient(cfg config.OpenAIConfig) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxConnsPerHost > 0 {
		transport.MaxConnsPerHost = cfg.MaxConnsPerHost
		transport.MaxIdleConnsPerHost = cfg.MaxConnsPerHost
	}

	newResty := func() *resty.Client {
		return resty.New().
			SetTransport(transport).
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetAuthToken(cfg.APIKey)
	}

	chat := newResty().
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	// 轉寫失敗不重試
	audio := newResty()

	common.LogInfo("模型客戶端已初始化",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.String("transcription_model", cfg.TranscriptionModel),
		zap.String("api_key", config.MaskAPIKey(cfg.APIKey)),
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("retry_count", cfg.RetryCount),
	)

	return &Client{
		config: cfg,
		chat:   chat,
		audio:  audio,
	}
}

// GetModel 獲取當前使用的模型名稱
func (c *Client) GetModel() string {
	return c.config.Model
}

// Close 釋放閒置連線
func (c *Client) Close() error {
	c.chat.GetClient().CloseIdleConnections()
	return nil
}

// Complete 送出單次非串流請求；非 200 或無法解析的回應一律回傳 *common.SynthesisError
func (c *Client) Complete(ctx context.Context, instruction string, image []byte) (string, error) {
	start := time.Now()
	text, err := c.complete(ctx, instruction, image)
	duration := time.Since(start)

	common.LogAICall("complete", duration, err)
	monitoring.RecordAIRequest("complete", duration, err)
	return text, err
}

func (c *Client) complete(ctx context.Context, instruction string, image []byte) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	content := []ai.ContentPart{{Type: "text", Text: instruction}}
	if len(image) > 0 {
		content = append(content, ai.ContentPart{
			Type:     "image_url",
			ImageURL: &ai.ImageURL{URL: DataURI(image)},
		})
	}

	req := ai.ChatRequest{
		Model: c.config.Model,
		Messages: []ai.ChatMessage{
			{Role: "user", Content: content},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	common.LogDebug("Sending chat request",
		zap.String("model", req.Model),
		zap.Int("instruction_length", len(instruction)),
		zap.Int("image_bytes", len(image)),
	)

	resp, err := c.chat.R().
		SetContext(ctx).
		SetBody(req).
		Post(chatPath)
	if err != nil {
		return "", &common.SynthesisError{Err: fmt.Errorf("failed to send request: %w", err)}
	}

	if resp.StatusCode() != http.StatusOK {
		body := sanitizeBody(resp.Body())
		common.LogError("Model API returned error",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", body),
		)
		return "", &common.SynthesisError{StatusCode: resp.StatusCode(), Body: body}
	}

	var result ai.Response
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", &common.SynthesisError{
			StatusCode: resp.StatusCode(),
			Body:       sanitizeBody(resp.Body()),
			Err:        fmt.Errorf("failed to parse response: %w", err),
		}
	}
	if len(result.Choices) == 0 {
		return "", &common.SynthesisError{
			StatusCode: resp.StatusCode(),
			Body:       sanitizeBody(resp.Body()),
			Err:        fmt.Errorf("no choices in response"),
		}
	}

	common.LogDebug("Chat response received",
		zap.String("id", result.ID),
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
		zap.String("finish_reason", result.Choices[0].FinishReason),
	)

	return result.Choices[0].Message.Content, nil
}

// Transcribe 以 multipart 上傳語音；非 200 或沒有文字時回傳 common.ErrTranscription
func (c *Client) Transcribe(ctx context.Context, audio []byte, contentType, filename string) (string, error) {
	start := time.Now()
	text, err := c.transcribe(ctx, audio, contentType, filename)
	duration := time.Since(start)

	common.LogAICall("transcribe", duration, err)
	monitoring.RecordAIRequest("transcribe", duration, err)
	return text, err
}

func (c *Client) transcribe(ctx context.Context, audio []byte, contentType, filename string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if filename == "" {
		filename = "audio"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp, err := c.audio.R().
		SetContext(ctx).
		SetMultipartField("file", filename, contentType, bytes.NewReader(audio)).
		SetFormData(map[string]string{"model": c.config.TranscriptionModel}).
		Post(transcriptionPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrTranscription, err)
	}

	if resp.StatusCode() != http.StatusOK {
		common.LogError("Transcription API returned error",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", sanitizeBody(resp.Body())),
		)
		return "", fmt.Errorf("%w: status %d", common.ErrTranscription, resp.StatusCode())
	}

	var result ai.TranscriptionResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrTranscription, err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return "", fmt.Errorf("%w: empty text", common.ErrTranscription)
	}

	return result.Text, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}

// DataURI 將 JPEG 位元組編碼為 data URI
func DataURI(image []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
}

// sanitizeBody 移除圖片資料並截斷過長內容
func sanitizeBody(body []byte) string {
	s := string(body)
	if strings.Contains(s, "data:image/") || strings.Contains(s, ";base64,") {
		return "[IMAGE_DATA_REMOVED]"
	}
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody] + "..."
	}
	return s
}
