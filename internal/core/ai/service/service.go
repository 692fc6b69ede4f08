package service

import (
	"context"
	"errors"
	"strings"

	"macro-snap/internal/core/ai/cache"
	"macro-snap/internal/core/ai/provider"
	"macro-snap/internal/core/ai/queue"
	"macro-snap/internal/pkg/common"

	"go.uber.org/zap"
)

// Response AI 回應結構
type Response struct {
	Content  string
	Model    string
	CacheHit bool
}

// Service AI 服務：快取 -> 隊列 -> 提供者
type Service struct {
	provider provider.Provider
	queue    *queue.Manager
	cache    cache.Store
}

// NewService 創建 AI 服務，cacheStore 可為 nil
func NewService(p provider.Provider, q *queue.Manager, cacheStore cache.Store) *Service {
	return &Service{
		provider: p,
		queue:    q,
		cache:    cacheStore,
	}
}

// ProcessRequest 統一對外方法
func (s *Service) ProcessRequest(ctx context.Context, req *provider.Request) (*Response, error) {
	// 統一 prompt 格式，確保快取 key 一致
	key := cache.Key(normalizePrompt(req.SystemPrompt+"\n"+req.Prompt), req.ImageURL)

	if s.cache != nil {
		if val, err := s.cache.Get(ctx, key); err == nil && val != "" {
			return &Response{Content: val, Model: s.provider.GetModel(), CacheHit: true}, nil
		} else if err != nil && !errors.Is(err, common.ErrCacheMiss) {
			common.LogWarn("讀取快取失敗", zap.Error(err), zap.String("request_id", req.RequestID))
		}
	}

	resp, err := s.queue.Submit(ctx, req)
	if err != nil {
		return nil, classifyError(err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp.Content); err != nil {
			common.LogWarn("寫入快取失敗", zap.Error(err), zap.String("request_id", req.RequestID))
		}
	}

	return &Response{Content: resp.Content, Model: resp.Model}, nil
}

// QueueStatus 隊列狀態
func (s *Service) QueueStatus() *queue.Status {
	return s.queue.GetQueueStatus()
}

// CacheStats 快取統計，停用時回傳 nil
func (s *Service) CacheStats() map[string]interface{} {
	if s.cache == nil {
		return nil
	}
	return s.cache.GetStats()
}

// Model 當前使用的模型
func (s *Service) Model() string {
	return s.provider.GetModel()
}

// classifyError 將上游錯誤轉為 API 錯誤
func classifyError(err error) error {
	var ce *common.CustomError
	switch {
	case errors.As(err, &ce):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return common.ErrGatewayTimeout.Wrap(err)
	case errors.Is(err, context.Canceled):
		return common.ErrRequestTimeout.Wrap(err)
	default:
		return common.ErrAIServiceError.Wrap(err)
	}
}

func normalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(prompt), " ")
}
