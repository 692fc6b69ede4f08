package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"macro-snap/internal/core/ai/provider"
	"macro-snap/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 60 * time.Second
)

var (
	// ErrEmptyResponse 模型回應沒有任何內容
	ErrEmptyResponse = errors.New("empty content in AI response")
	// ErrMissingAPIKey 未設定 OPENROUTER_API_KEY
	ErrMissingAPIKey = errors.New("api key not configured")
)

// Client OpenRouter API 客戶端
type Client struct {
	client *resty.Client
	config provider.Config
}

// chatRequest chat/completions 請求
type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []common.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Temperature float64              `json:"temperature,omitempty"`
}

// apiError 表示 API 錯誤
type apiError struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// StatusError 上游回傳非 2xx 狀態碼
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("AI service error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable 429 與 5xx 可重試
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// NewClient 創建新的 OpenRouter 客戶端
func NewClient(cfg provider.Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Title == "" {
		cfg.Title = "Macro Snap"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("X-Title", cfg.Title).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Referer != "" {
		client.SetHeader("HTTP-Referer", cfg.Referer)
	}

	return &Client{
		client: client,
		config: cfg,
	}
}

// GetModel 獲取當前使用的模型名稱
func (c *Client) GetModel() string {
	return c.config.Model
}

// GetTimeout 獲取請求超時時間
func (c *Client) GetTimeout() time.Duration {
	return c.config.Timeout
}

// buildMessages 系統提示詞 + 使用者文字與圖片
func buildMessages(req *provider.Request) []common.ChatMessage {
	messages := make([]common.ChatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, common.ChatMessage{
			Role:    "system",
			Content: []common.Content{common.TextContent(req.SystemPrompt)},
		})
	}

	user := common.ChatMessage{Role: "user"}
	if req.Prompt != "" {
		user.Content = append(user.Content, common.TextContent(req.Prompt))
	}
	if req.ImageURL != "" {
		url := req.ImageURL
		if !strings.HasPrefix(url, "data:image/") && !strings.HasPrefix(url, "http") {
			url = "data:image/jpeg;base64," + url
		}
		user.Content = append(user.Content, common.ImageContent(url))
	}
	return append(messages, user)
}

// Generate 生成回應
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if c.config.APIKey == "" {
		return nil, common.ErrAIServiceError.Wrap(ErrMissingAPIKey)
	}

	body := chatRequest{
		Model:       c.config.Model,
		Messages:    buildMessages(req),
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = req.Temperature
	}

	common.LogDebug("Sending request to OpenRouter",
		zap.String("model", body.Model),
		zap.Int("messages", len(body.Messages)),
		zap.Bool("has_image", req.ImageURL != ""),
		zap.String("request_id", req.RequestID),
	)

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		common.LogAICall(body.Model, time.Since(start), err, req.RequestID)
		return nil, fmt.Errorf("failed to send request to OpenRouter: %w", err)
	}

	// 清理響應內容（移除所有圖片數據）
	sanitized := sanitizeResponse(resp.Body())

	if resp.StatusCode() != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode(), Message: errorMessage(resp.Body(), sanitized)}
		common.LogAICall(body.Model, time.Since(start), statusErr, req.RequestID)
		return nil, statusErr
	}

	var result common.ChatCompletionResponse
	if err := common.ParseJSONBytes(resp.Body(), &result); err != nil {
		common.LogError("Failed to parse AI service response",
			zap.Error(err),
			zap.String("model", body.Model),
			zap.String("response", common.Truncate(sanitized, 500)),
		)
		return nil, fmt.Errorf("failed to parse OpenRouter response: %w", err)
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		common.LogAICall(body.Model, time.Since(start), ErrEmptyResponse, req.RequestID)
		return nil, ErrEmptyResponse
	}

	common.LogAICall(body.Model, time.Since(start), nil, req.RequestID)

	model := result.Model
	if model == "" {
		model = body.Model
	}
	return &provider.Response{
		Content:      result.Choices[0].Message.Content,
		Model:        model,
		FinishReason: result.Choices[0].FinishReason,
		Usage: provider.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	}, nil
}

// errorMessage 優先取 API 錯誤結構中的 message
func errorMessage(body []byte, sanitized string) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return common.Truncate(sanitized, 500)
}

// sanitizeResponse 清理響應內容，移除所有圖片數據
func sanitizeResponse(body []byte) string {
	text := string(body)
	if strings.Contains(text, "data:image/") {
		return "[IMAGE_DATA_REMOVED]"
	}
	if len(body) > 100 && strings.Contains(text, ";base64,") {
		return "[BASE64_DATA_REMOVED]"
	}
	return text
}

// Close 關閉客戶端
func (c *Client) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}
