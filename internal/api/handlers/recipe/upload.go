package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	recipeService "recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultAudioType = "audio/m4a"
	defaultAudioName = "audio.m4a"
)

// Pipeline 食譜請求處理流程
type Pipeline interface {
	HandleText(ctx context.Context, text string, meta recipeService.RequestMeta) (*recipeService.Result, error)
	HandleAudio(ctx context.Context, audio []byte, contentType, filename string, meta recipeService.RequestMeta) (*recipeService.Result, error)
	HandleImage(ctx context.Context, image []byte, caption string, meta recipeService.RequestMeta) (*recipeService.Result, error)
	DailyRecipe(ctx context.Context) (string, error)
}

// Handler 上傳端點
type Handler struct {
	pipeline Pipeline
}

// NewHandler 創建上傳端點
func NewHandler(pipeline Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

// TranscriptionResponse 文字與語音請求的回應；recipe 為 JSON 字串
type TranscriptionResponse struct {
	Transcription string `json:"transcription"`
	Recipe        string `json:"recipe"`
}

// DailyRecipeResponse 每日食譜回應
type DailyRecipeResponse struct {
	Recipe string `json:"recipe"`
}

// HandleImage POST /upload：multipart 欄位 image，可選 caption
func (h *Handler) HandleImage(c *gin.Context) {
	data, _, err := readFormFile(c, "image")
	if err != nil {
		h.writeReadError(c, err, "No image provided")
		return
	}
	caption := c.PostForm("caption")

	common.LogInfo("Received image request",
		zap.String("client_ip", c.ClientIP()),
		zap.Int("size", len(data)),
		zap.Bool("has_caption", caption != ""),
		zap.String("request_id", requestid.Get(c)),
	)

	result, err := h.pipeline.HandleImage(c.Request.Context(), data, caption, h.meta(c))
	if err != nil {
		common.WriteErrorFrom(c, err, errorMessage(err, "Failed to analyze image"))
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"recipe": json.RawMessage(result.Raw)})
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(result.Raw))
}

// HandleAudio POST /upload_audio：multipart 欄位 audio
func (h *Handler) HandleAudio(c *gin.Context) {
	data, header, err := readFormFile(c, "audio")
	if err != nil {
		h.writeReadError(c, err, "No audio provided")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = defaultAudioType
	}
	filename := header.Filename
	if filename == "" {
		filename = defaultAudioName
	}

	common.LogInfo("Received audio request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("filename", filename),
		zap.Int("size", len(data)),
		zap.String("request_id", requestid.Get(c)),
	)

	result, err := h.pipeline.HandleAudio(c.Request.Context(), data, contentType, filename, h.meta(c))
	if err != nil {
		common.WriteErrorFrom(c, err, errorMessage(err, "Failed to analyze audio"))
		return
	}

	c.JSON(http.StatusOK, TranscriptionResponse{
		Transcription: result.Transcription,
		Recipe:        result.Raw,
	})
}

// HandleText POST /upload_text：multipart 欄位 text
func (h *Handler) HandleText(c *gin.Context) {
	text, err := readFormText(c, "text")
	if err != nil {
		h.writeReadError(c, err, "No text provided")
		return
	}

	common.LogInfo("Received text request",
		zap.String("client_ip", c.ClientIP()),
		zap.Int("length", len(text)),
		zap.String("request_id", requestid.Get(c)),
	)

	result, err := h.pipeline.HandleText(c.Request.Context(), text, h.meta(c))
	if err != nil {
		common.WriteErrorFrom(c, err, errorMessage(err, "Failed to analyze text"))
		return
	}

	c.JSON(http.StatusOK, TranscriptionResponse{
		Transcription: result.Transcription,
		Recipe:        result.Raw,
	})
}

// HandleDailyRecipe POST /upload_daily_recipe：忽略請求內容
func (h *Handler) HandleDailyRecipe(c *gin.Context) {
	if c.Request.Body != nil {
		_, _ = io.Copy(io.Discard, c.Request.Body)
	}

	text, err := h.pipeline.DailyRecipe(c.Request.Context())
	if err != nil {
		common.WriteErrorFrom(c, err, "Failed to fetch daily recipe")
		return
	}

	c.JSON(http.StatusOK, DailyRecipeResponse{Recipe: text})
}

func (h *Handler) meta(c *gin.Context) recipeService.RequestMeta {
	return recipeService.RequestMeta{ClientIP: c.ClientIP()}
}

func (h *Handler) writeReadError(c *gin.Context, err error, missing string) {
	common.LogWarn(missing, zap.Error(err), zap.String("client_ip", c.ClientIP()))
	common.WriteErrorFrom(c, readError(err, missing), missing)
}

// readError 將表單讀取失敗轉為帶狀態碼的 CustomError
func readError(err error, missing string) *common.CustomError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return common.NewError(common.ErrCodeBodyTooLarge, "Request body too large", http.StatusRequestEntityTooLarge, err)
	}
	return common.NewError(common.ErrCodeInvalidRequest, missing, http.StatusBadRequest, err)
}

// errorMessage 依錯誤種類選擇對外訊息
func errorMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, common.ErrTranscription):
		return "Failed to transcribe audio"
	case errors.Is(err, common.ErrImageDecode):
		return "Invalid image"
	case errors.Is(err, common.ErrSynthesis):
		return "OpenAI request failed"
	case errors.Is(err, common.ErrSchema):
		return "Invalid recipe format"
	case errors.Is(err, common.ErrQueueFull):
		return "Server is busy"
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timeout"
	default:
		return fallback
	}
}

var errFieldMissing = errors.New("field missing")

// readFormFile 讀取 multipart 檔案欄位
func readFormFile(c *gin.Context, field string) ([]byte, *multipart.FileHeader, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	if len(data) == 0 {
		return nil, nil, errFieldMissing
	}
	return data, header, nil
}

// readFormText 讀取文字欄位；用戶端以檔案形式上傳時亦可
func readFormText(c *gin.Context, field string) (string, error) {
	if text, ok := c.GetPostForm(field); ok && strings.TrimSpace(text) != "" {
		return text, nil
	}

	data, _, err := readFormFile(c, field)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errFieldMissing
	}
	return string(data), nil
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
