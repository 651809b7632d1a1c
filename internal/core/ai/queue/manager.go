package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"recipe-assistant/internal/infrastructure/config"
	"recipe-assistant/internal/infrastructure/monitoring"
	"recipe-assistant/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrClosed 佇列已關閉
var ErrClosed = errors.New("queue manager is closed")

// Job 在工作協程中執行的任務
type Job func(ctx context.Context) error

// request 隊列請求
type request struct {
	ctx    context.Context
	job    Job
	result chan error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Manager 固定數量工作協程的有界佇列，用於 CPU 密集的圖片處理
type Manager struct {
	config    config.QueueConfig
	queue     chan *request
	processed int64
	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
}

// NewManager 創建隊列管理器並啟動工作協程
func NewManager(cfg config.QueueConfig) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1
	}

	m := &Manager{
		config: cfg,
		queue:  make(chan *request, cfg.MaxSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}

	common.LogInfo("工作佇列已啟動",
		zap.Int("workers", cfg.Workers),
		zap.Int("max_queue_size", cfg.MaxSize),
	)
	return m
}

// Do 將任務排入佇列並等待完成；佇列滿時立即回傳 common.ErrQueueFull
func (m *Manager) Do(ctx context.Context, job Job) error {
	req := &request{
		ctx:    ctx,
		job:    job,
		result: make(chan error, 1),
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	select {
	case m.queue <- req:
		monitoring.SetQueueDepth(len(m.queue))
		m.mu.RUnlock()
	default:
		m.mu.RUnlock()
		common.LogWarn("Queue is full",
			zap.Int("max_queue_size", m.config.MaxSize),
		)
		return common.ErrQueueFull
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()

	for req := range m.queue {
		monitoring.SetQueueDepth(len(m.queue))

		// 呼叫端已放棄時略過
		if err := req.ctx.Err(); err != nil {
			req.result <- err
			continue
		}

		err := m.run(req)
		atomic.AddInt64(&m.processed, 1)
		req.result <- err
	}
}

func (m *Manager) run(req *request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			common.LogError("Queue job panicked", zap.Any("error", r))
			err = errors.New("queue job panicked")
		}
	}()
	return req.job(req.ctx)
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: atomic.LoadInt64(&m.processed),
		MaxQueueSize:   m.config.MaxSize,
		Workers:        m.config.Workers,
	}
}

// Close 停止接收新任務，處理完已排入的任務後返回
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
	common.LogInfo("工作佇列已關閉",
		zap.Int64("processed", atomic.LoadInt64(&m.processed)),
	)
}
