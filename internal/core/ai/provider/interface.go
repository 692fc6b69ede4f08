package provider

import (
	"context"
	"time"
)

// Request 表示發送到 AI 提供者的單次圖片分析請求
type Request struct {
	SystemPrompt string
	Prompt       string
	// ImageURL 可為 data URI 或公開網址；空字串表示純文字請求
	ImageURL    string
	MaxTokens   int
	Temperature float64
	RequestID   string
}

// Usage token 使用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response 表示從 AI 提供者收到的響應
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Provider 定義 AI 提供者介面
type Provider interface {
	// Generate 生成 AI 響應
	Generate(ctx context.Context, req *Request) (*Response, error)

	// GetModel 獲取當前使用的模型名稱
	GetModel() string

	// GetTimeout 獲取請求超時時間
	GetTimeout() time.Duration

	// Close 關閉提供者連接
	Close() error
}

// Config 定義 AI 提供者配置
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Referer     string
	Title       string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
}
