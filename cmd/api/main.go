package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"recipe-assistant/internal/api"
	"recipe-assistant/internal/core/ai/cache"
	"recipe-assistant/internal/core/ai/openai"
	"recipe-assistant/internal/core/ai/queue"
	"recipe-assistant/internal/core/image"
	"recipe-assistant/internal/core/recipe"
	"recipe-assistant/internal/infrastructure/config"
	"recipe-assistant/internal/infrastructure/database"
	"recipe-assistant/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		// logger 尚未初始化時仍需輸出到主控台
		fmt.Fprintf(os.Stderr, "recipe-assistant: %v\n", err)
		common.LogError("Application stopped with error", zap.Error(err))
		common.Sync()
		os.Exit(1)
	}
}

func run() error {
	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogMode, cfg.LogDir); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("openai_api_key", config.MaskAPIKey(cfg.OpenAI.APIKey)),
		zap.String("openai_model", cfg.OpenAI.Model),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	// 資料庫
	db, err := database.New(cfg.Database, cfg.App.Debug)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// 回應快取
	responseCache, err := cache.New(cfg.Cache, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	if responseCache != nil {
		defer responseCache.Close()
	}

	// 圖片工作池
	jobs := queue.NewManager(cfg.Queue)
	defer jobs.Close()

	client := openai.NewClient(cfg.OpenAI)
	defer client.Close()

	deps := recipe.Deps{
		Provider:      client,
		Images:        image.NewService(cfg.Image.MaxSizeBytes, cfg.Image.MaxDimension, cfg.Image.JPEGQuality),
		Daily:         database.NewRecipeStore(db),
		Queue:         jobs,
		ResponseCache: responseCache,
	}
	if cfg.RequestLog.Enabled {
		deps.RequestLog = database.NewRequestLogStore(db)
	}

	recipeSvc, err := recipe.NewService(deps)
	if err != nil {
		return fmt.Errorf("failed to initialize recipe service: %w", err)
	}

	router, err := api.SetupRouter(cfg, api.Deps{
		Pipeline: recipeSvc,
		DB:       db,
		Queue:    jobs,
	})
	if err != nil {
		return fmt.Errorf("failed to setup router: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		common.LogInfo("啟動應用",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	if cfg.Scheduler.Enabled {
		scheduler := recipe.NewScheduler(recipeSvc, cfg.Scheduler.StartupDelay, cfg.Scheduler.Interval)
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		common.LogInfo("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	common.LogInfo("Server exited")
	return nil
}
