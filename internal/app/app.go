package app

import (
	"context"
	"fmt"

	"macro-snap/internal/core/ai/cache"
	"macro-snap/internal/core/ai/openrouter"
	"macro-snap/internal/core/ai/provider"
	"macro-snap/internal/core/ai/queue"
	"macro-snap/internal/core/ai/service"
	"macro-snap/internal/core/analysis"
	"macro-snap/internal/core/image"
	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"
	"macro-snap/internal/storage"
	"macro-snap/internal/storage/imagestore"

	"go.uber.org/zap"
)

// App 組裝後的服務，供 HTTP 服務與 CLI 共用
type App struct {
	Provider provider.Provider
	Queue    *queue.Manager
	Cache    cache.Store
	AI       *service.Service
	Store    storage.Store
	Analysis *analysis.Service
}

// New 依設定初始化所有服務
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	common.LogInfo("Initializing services",
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Int("queue_workers", cfg.Queue.Workers),
		zap.String("model", cfg.OpenRouter.Model),
		zap.String("api_key", config.MaskAPIKey(cfg.OpenRouter.APIKey)),
		zap.String("prompt_style", cfg.AI.PromptStyle),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	a := &App{}

	// 初始化 AI 提供者
	a.Provider = openrouter.NewClient(provider.Config{
		APIKey:      cfg.OpenRouter.APIKey,
		Model:       cfg.OpenRouter.Model,
		BaseURL:     cfg.OpenRouter.BaseURL,
		Referer:     cfg.OpenRouter.Referer,
		Title:       cfg.App.Name,
		Timeout:     cfg.OpenRouter.Timeout,
		MaxRetries:  2,
		MaxTokens:   cfg.OpenRouter.MaxTokens,
		Temperature: cfg.OpenRouter.Temperature,
	})

	// 初始化快取
	cacheStore, err := cache.New(&cfg.Cache)
	if err != nil {
		_ = a.Provider.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	a.Cache = cacheStore

	// 初始化隊列與 AI 服務
	a.Queue = queue.NewManager(&cfg.Queue, a.Provider)
	a.AI = service.NewService(a.Provider, a.Queue, a.Cache)

	// 初始化紀錄儲存
	store, err := storage.New(&cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.Store = store

	opts := []analysis.Option{}
	if a.Store != nil {
		opts = append(opts, analysis.WithStore(a.Store))
	}

	// 初始化 S3 圖片封存
	archive, err := imagestore.New(ctx, &cfg.ImageStore)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize image store: %w", err)
	}
	if archive != nil {
		opts = append(opts, analysis.WithImageArchive(archive))
	}

	a.Analysis = analysis.NewService(a.AI, image.NewService(&cfg.Image), analysis.PromptStyle(cfg.AI.PromptStyle), opts...)

	common.LogInfo("Services initialized successfully",
		zap.Bool("storage_enabled", a.Store != nil),
		zap.Bool("image_store_enabled", archive != nil),
	)
	return a, nil
}

// Close 依相反順序釋放資源
func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			common.LogWarn("Failed to close storage", zap.Error(err))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			common.LogWarn("Failed to close cache", zap.Error(err))
		}
	}
	if a.Provider != nil {
		_ = a.Provider.Close()
	}
}
