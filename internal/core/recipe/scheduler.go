package recipe

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"recipe-assistant/internal/infrastructure/monitoring"
	"recipe-assistant/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrSchedulerStarted 排程只能啟動一次
var ErrSchedulerStarted = errors.New("daily scheduler already started")

// Refresher 產生並儲存新的每日食譜
type Refresher interface {
	RefreshDaily(ctx context.Context) (string, error)
}

// Scheduler 每日食譜背景排程：啟動延遲後執行，之後每次執行結束再等待固定間隔
type Scheduler struct {
	refresher    Refresher
	startupDelay time.Duration
	interval     time.Duration
	started      atomic.Bool
}

// NewScheduler 創建排程
func NewScheduler(refresher Refresher, startupDelay, interval time.Duration) *Scheduler {
	return &Scheduler{
		refresher:    refresher,
		startupDelay: startupDelay,
		interval:     interval,
	}
}

// Run 執行排程直到 ctx 取消；單次失敗只記錄，不中止迴圈
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSchedulerStarted
	}

	common.LogInfo("每日食譜排程已啟動",
		zap.Duration("startup_delay", s.startupDelay),
		zap.Duration("interval", s.interval),
	)

	timer := time.NewTimer(s.startupDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			common.LogInfo("每日食譜排程已停止")
			return nil
		case <-timer.C:
		}

		s.tick(ctx)
		timer.Reset(s.interval)
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()
	err := s.refresh(ctx)
	monitoring.RecordSchedulerTick(err)

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		common.LogError("每日食譜更新失敗，保留舊資料",
			zap.String("code", common.CodeFor(err)),
			zap.Error(err),
			zap.Duration("耗時", time.Since(start)),
		)
		return
	}
	common.LogDebug("Daily scheduler tick finished", zap.Duration("耗時", time.Since(start)))
}

func (s *Scheduler) refresh(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("daily refresh panicked: %v", r)
		}
	}()
	_, err = s.refresher.RefreshDaily(ctx)
	return err
}
