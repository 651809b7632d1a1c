package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recipe-assistant/internal/core/ai/cache"
	"recipe-assistant/internal/core/ai/provider"
	"recipe-assistant/internal/core/ai/queue"
	"recipe-assistant/internal/infrastructure/monitoring"
	"recipe-assistant/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RecipeCache 每日食譜的單筆快取
type RecipeCache interface {
	Get(ctx context.Context) (*RecipeRecord, error)
	Replace(ctx context.Context, text string) error
}

// RequestLogger 請求稽核紀錄
type RequestLogger interface {
	Append(ctx context.Context, entry RequestLogEntry) error
}

// ImageNormalizer 圖片正規化
type ImageNormalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// Deps 服務依賴；Queue、ResponseCache、RequestLog 可為 nil
type Deps struct {
	Provider      provider.Provider
	Images        ImageNormalizer
	Daily         RecipeCache
	Queue         *queue.Manager
	ResponseCache cache.Store
	RequestLog    RequestLogger
}

// RequestMeta 呼叫端資訊，僅用於稽核紀錄
type RequestMeta struct {
	ClientIP string
}

// Service 請求協調：正規化、組提示、生成、驗證、紀錄
type Service struct {
	provider      provider.Provider
	images        ImageNormalizer
	daily         RecipeCache
	queue         *queue.Manager
	responseCache cache.Store
	requestLog    RequestLogger
	fill          singleflight.Group
}

// NewService 創建食譜服務
func NewService(deps Deps) (*Service, error) {
	if deps.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if deps.Images == nil {
		return nil, errors.New("image normalizer is required")
	}
	if deps.Daily == nil {
		return nil, errors.New("daily recipe cache is required")
	}

	return &Service{
		provider:      deps.Provider,
		images:        deps.Images,
		daily:         deps.Daily,
		queue:         deps.Queue,
		responseCache: deps.ResponseCache,
		requestLog:    deps.RequestLog,
	}, nil
}

// HandleText 文字問題
func (s *Service) HandleText(ctx context.Context, text string, meta RequestMeta) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, s.fail(KindText, fmt.Errorf("%w: empty text", common.ErrInvalidInput))
	}

	result, err := s.synthesize(ctx, NewTextQuery(KindText, text), len(text), meta)
	if err != nil {
		return nil, s.fail(KindText, err)
	}
	return result, nil
}

// HandleAudio 語音問題：先轉寫再走文字流程
func (s *Service) HandleAudio(ctx context.Context, audio []byte, contentType, filename string, meta RequestMeta) (*Result, error) {
	if len(audio) == 0 {
		return nil, s.fail(KindAudio, fmt.Errorf("%w: empty audio", common.ErrInvalidInput))
	}

	transcript, err := s.provider.Transcribe(ctx, audio, contentType, filename)
	if err != nil {
		return nil, s.fail(KindAudio, err)
	}

	result, err := s.synthesize(ctx, NewTextQuery(KindAudio, transcript), len(audio), meta)
	if err != nil {
		return nil, s.fail(KindAudio, err)
	}
	return result, nil
}

// HandleImage 照片（可附說明文字）
func (s *Service) HandleImage(ctx context.Context, image []byte, caption string, meta RequestMeta) (*Result, error) {
	if len(image) == 0 {
		return nil, s.fail(KindImage, fmt.Errorf("%w: empty image", common.ErrInvalidInput))
	}

	normalized, err := s.normalizeImage(ctx, image)
	if err != nil {
		return nil, s.fail(KindImage, err)
	}

	result, err := s.synthesize(ctx, NewImageQuery(normalized, caption), len(image), meta)
	if err != nil {
		return nil, s.fail(KindImage, err)
	}
	return result, nil
}

// DailyRecipe 讀取每日食譜；快取為空時同步生成一次，並行的請求共用同一次生成
func (s *Service) DailyRecipe(ctx context.Context) (string, error) {
	rec, err := s.daily.Get(ctx)
	if err != nil {
		return "", err
	}
	if rec != nil {
		return rec.RecipeText, nil
	}

	common.LogInfo("每日食譜快取為空，立即生成")
	ch := s.fill.DoChan("daily", func() (interface{}, error) {
		// 與發起者的取消解耦，其他等待者仍可取得結果
		return s.RefreshDaily(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RefreshDaily 生成新的每日食譜並取代快取；失敗時保留舊資料
func (s *Service) RefreshDaily(ctx context.Context) (string, error) {
	prompt := BuildDailyPrompt()

	raw, err := s.provider.Complete(ctx, prompt.Instruction, nil)
	if err != nil {
		return "", err
	}

	_, cleaned, err := Validate(raw)
	if err != nil {
		common.LogWarn("每日食譜格式錯誤", zap.Error(err))
		return "", err
	}

	if err := s.daily.Replace(ctx, cleaned); err != nil {
		return "", err
	}

	monitoring.RecordDailyRecipeUpdated(time.Now())
	common.LogInfo("每日食譜已更新", zap.Int("length", len(cleaned)))
	return cleaned, nil
}

func (s *Service) normalizeImage(ctx context.Context, image []byte) ([]byte, error) {
	if s.queue == nil {
		return s.images.Normalize(image)
	}

	// 呼叫端可能在工作仍執行時因 ctx 結束而返回，結果只經由通道交付
	result := make(chan []byte, 1)
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		out, err := s.images.Normalize(image)
		if err != nil {
			return err
		}
		result <- out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return <-result, nil
}

func (s *Service) synthesize(ctx context.Context, q NormalizedQuery, inputSize int, meta RequestMeta) (*Result, error) {
	start := time.Now()
	prompt := BuildPrompt(q)
	key := cache.Key(prompt.Instruction, prompt.Image)

	if raw, ok := s.cached(ctx, key); ok {
		if recipe, cleaned, err := Validate(raw); err == nil {
			return &Result{Transcription: q.Text(), Raw: cleaned, Recipe: recipe}, nil
		}
	}

	raw, err := s.provider.Complete(ctx, prompt.Instruction, prompt.Image)
	if err != nil {
		return nil, err
	}

	recipe, cleaned, err := Validate(raw)
	if err != nil {
		common.LogWarn("模型回應格式錯誤",
			zap.String("kind", q.Kind().String()),
			zap.String("model", s.provider.GetModel()),
			zap.Error(err),
		)
		return nil, err
	}

	if s.responseCache != nil {
		if err := s.responseCache.Set(ctx, key, cleaned); err != nil {
			common.LogWarn("Failed to store response cache", zap.Error(err))
		}
	}
	s.appendLog(ctx, RequestLogEntry{
		UserIP:       meta.ClientIP,
		InputSize:    inputSize,
		ResponseText: cleaned,
	})

	common.LogInfo("食譜生成完成",
		zap.String("kind", q.Kind().String()),
		zap.String("model", s.provider.GetModel()),
		zap.Duration("耗時", time.Since(start)),
	)
	return &Result{Transcription: q.Text(), Raw: cleaned, Recipe: recipe}, nil
}

func (s *Service) cached(ctx context.Context, key string) (string, bool) {
	if s.responseCache == nil {
		return "", false
	}
	raw, err := s.responseCache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, common.ErrCacheMiss) {
			common.LogWarn("Response cache lookup failed", zap.Error(err))
		}
		return "", false
	}
	return raw, true
}

// appendLog 稽核紀錄失敗不影響回應
func (s *Service) appendLog(ctx context.Context, entry RequestLogEntry) {
	if s.requestLog == nil {
		return
	}
	if err := s.requestLog.Append(ctx, entry); err != nil {
		common.LogWarn("Failed to append request log", zap.Error(err))
	}
}

func (s *Service) fail(kind Kind, err error) error {
	monitoring.RecordPipelineError(kind.String(), common.CodeFor(err))
	common.LogError("食譜請求失敗",
		zap.String("kind", kind.String()),
		zap.String("code", common.CodeFor(err)),
		zap.Error(err),
	)
	return err
}
