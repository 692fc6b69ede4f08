package analysis

import (
	"context"
	"errors"
	"time"

	"macro-snap/internal/core/ai/provider"
	"macro-snap/internal/core/ai/service"
	"macro-snap/internal/core/image"
	"macro-snap/internal/core/nutrition"
	"macro-snap/internal/pkg/common"
	"macro-snap/internal/storage"

	"go.uber.org/zap"
)

// AIClient AI 服務中分析流程用到的部分
type AIClient interface {
	ProcessRequest(ctx context.Context, req *provider.Request) (*service.Response, error)
}

// ImageArchiver 圖片封存
type ImageArchiver interface {
	PutJPEG(ctx context.Context, entryID string, data []byte) (string, error)
}

// AnalyzeRequest 單次圖片分析請求
type AnalyzeRequest struct {
	Image           string
	DescriptionHint string
	CropSquare      bool
	Save            bool
	UserID          string
	RequestID       string
}

// Result 分析結果
type Result struct {
	RequestID string           `json:"request_id"`
	Nutrition nutrition.Record `json:"nutrition"`
	CacheHit  bool             `json:"cache_hit"`
	Model     string           `json:"model,omitempty"`
	EntryID   string           `json:"entry_id,omitempty"`
	ImageURI  string           `json:"image_uri,omitempty"`
}

// Service 食物照片營養分析服務
type Service struct {
	ai         AIClient
	images     *image.Service
	store      storage.Store
	archive    ImageArchiver
	style      PromptStyle
	normalizer *nutrition.Normalizer
}

// Option Service 設定
type Option func(*Service)

// WithStore 啟用紀錄儲存
func WithStore(store storage.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithImageArchive 啟用 S3 圖片封存
func WithImageArchive(archive ImageArchiver) Option {
	return func(s *Service) {
		s.archive = archive
	}
}

// NewService 創建分析服務
func NewService(ai AIClient, images *image.Service, style PromptStyle, opts ...Option) *Service {
	if style != PromptStyleText {
		style = PromptStyleJSON
	}
	s := &Service{
		ai:         ai,
		images:     images,
		style:      style,
		normalizer: nutrition.NewNormalizer(nutrition.WithExpectedShape(style.ExpectedShape())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeImage 圖片前處理 -> AI 分析 -> 正規化 -> 選擇性儲存
func (s *Service) AnalyzeImage(ctx context.Context, req AnalyzeRequest) (*Result, error) {
	if req.Image == "" {
		return nil, common.ErrMissingImage
	}
	if req.RequestID == "" {
		req.RequestID = common.GenerateUUID()
	}
	if req.Save && s.store == nil {
		return nil, common.ErrStorageDisabled
	}

	start := time.Now()
	common.LogInfo("開始處理食物營養分析請求",
		zap.String("request_id", req.RequestID),
		zap.Int("image_length", len(req.Image)),
		zap.Bool("crop_square", req.CropSquare),
		zap.Bool("save", req.Save),
	)

	processed, err := s.images.ProcessImage(ctx, req.Image, image.Options{CropSquare: req.CropSquare})
	if err != nil {
		common.LogWarn("圖片處理失敗", zap.Error(err), zap.String("request_id", req.RequestID))
		return nil, err
	}

	resp, err := s.ai.ProcessRequest(ctx, &provider.Request{
		SystemPrompt: s.style.SystemPrompt(),
		Prompt:       s.style.UserPrompt(req.DescriptionHint),
		ImageURL:     processed.DataURI,
		RequestID:    req.RequestID,
	})
	if err != nil {
		common.LogError("AI 服務請求失敗", zap.Error(err), zap.String("request_id", req.RequestID))
		return nil, err
	}

	common.LogDebug("AI 原始回應",
		zap.String("request_id", req.RequestID),
		zap.String("raw_preview", common.Truncate(resp.Content, 300)),
	)
	record := s.normalizer.Normalize(resp.Content)

	result := &Result{
		RequestID: req.RequestID,
		Nutrition: record,
		CacheHit:  resp.CacheHit,
		Model:     resp.Model,
	}

	if req.Save {
		entry, err := s.persist(ctx, req, record, resp.Content, processed.JPEG)
		if err != nil {
			return nil, err
		}
		result.EntryID = entry.ID
		result.ImageURI = entry.ImageURI
	}

	common.LogInfo("食物營養分析完成",
		zap.String("request_id", req.RequestID),
		zap.String("food_name", record.FoodName),
		zap.Float64("calories", record.Calories),
		zap.String("source", string(record.Source)),
		zap.Bool("cache_hit", resp.CacheHit),
		zap.Duration("耗時", time.Since(start)),
	)
	return result, nil
}

// persist 上傳圖片並寫入紀錄；圖片上傳失敗不影響紀錄
func (s *Service) persist(ctx context.Context, req AnalyzeRequest, record nutrition.Record, raw string, jpeg []byte) (*storage.Entry, error) {
	entry := &storage.Entry{
		ID:        common.GenerateUUID(),
		UserID:    req.UserID,
		Nutrition: record,
		RawText:   raw,
		Notes:     req.DescriptionHint,
	}

	if s.archive != nil {
		uri, err := s.archive.PutJPEG(ctx, entry.ID, jpeg)
		if err != nil {
			common.LogWarn("圖片封存失敗", zap.Error(err), zap.String("entry_id", entry.ID))
		} else {
			entry.ImageURI = uri
		}
	}

	if err := s.store.SaveEntry(ctx, entry); err != nil {
		common.LogError("儲存分析紀錄失敗", zap.Error(err), zap.String("entry_id", entry.ID))
		return nil, common.ErrInternalError.Wrap(err)
	}
	return entry, nil
}

// NormalizeText 直接正規化模型輸出文字，expect 為空時使用自動判斷
func (s *Service) NormalizeText(raw string, expect nutrition.Shape) nutrition.Record {
	if expect == nutrition.ShapeAuto {
		return nutrition.Normalize(raw)
	}
	return nutrition.NewNormalizer(nutrition.WithExpectedShape(expect)).Normalize(raw)
}

// ListEntries 列出紀錄
func (s *Service) ListEntries(ctx context.Context, userID string, limit int) ([]*storage.Entry, error) {
	if s.store == nil {
		return nil, common.ErrStorageDisabled
	}
	entries, err := s.store.ListEntries(ctx, userID, limit)
	if err != nil {
		return nil, common.ErrInternalError.Wrap(err)
	}
	return entries, nil
}

// GetEntry 取得單筆紀錄
func (s *Service) GetEntry(ctx context.Context, id string) (*storage.Entry, error) {
	if s.store == nil {
		return nil, common.ErrStorageDisabled
	}
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return entry, nil
}

// DeleteEntry 刪除紀錄
func (s *Service) DeleteEntry(ctx context.Context, id string) error {
	if s.store == nil {
		return common.ErrStorageDisabled
	}
	return storeError(s.store.DeleteEntry(ctx, id))
}

// StorageEnabled 是否已設定儲存
func (s *Service) StorageEnabled() bool {
	return s.store != nil
}

func storeError(err error) error {
	if err == nil || errors.Is(err, common.ErrEntryNotFound) {
		return err
	}
	return common.ErrInternalError.Wrap(err)
}
