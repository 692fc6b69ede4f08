package health

import (
	"net/http"
	"runtime"
	"time"

	"macro-snap/internal/core/ai/queue"
	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StatusSource 提供隊列與快取狀態
type StatusSource interface {
	QueueStatus() *queue.Status
	CacheStats() map[string]interface{}
	Model() string
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Model     string                 `json:"model"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
	Storage   bool                   `json:"storage_enabled"`
}

// Handler 健康檢查處理器
type Handler struct {
	cfg            *config.Config
	status         StatusSource
	storageEnabled bool
}

// NewHandler 創建健康檢查處理器
func NewHandler(cfg *config.Config, status StatusSource, storageEnabled bool) *Handler {
	return &Handler{cfg: cfg, status: status, storageEnabled: storageEnabled}
}

// HealthCheck 健康檢查
func (h *Handler) HealthCheck(c *gin.Context) {
	// 獲取運行時信息
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.cfg.App.Version,
		Model:     h.status.Model(),
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
		Queue:   h.status.QueueStatus(),
		Cache:   h.status.CacheStats(),
		Storage: h.storageEnabled,
	}
	if response.Queue != nil && response.Queue.Closed {
		response.Status = "degraded"
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查：API key 已設定且隊列可接受請求
func (h *Handler) ReadinessCheck(c *gin.Context) {
	var reasons []string
	if h.cfg.OpenRouter.APIKey == "" {
		reasons = append(reasons, "api key not configured")
	}
	if qs := h.status.QueueStatus(); qs == nil || qs.Closed {
		reasons = append(reasons, "queue closed")
	} else if qs.QueueLength >= qs.MaxQueueSize {
		reasons = append(reasons, "queue full")
	}

	if len(reasons) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not_ready",
			"reasons": reasons,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck 存活檢查
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "alive",
		"goroutines": runtime.NumGoroutine(),
	})
}
