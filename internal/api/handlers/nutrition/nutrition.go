package nutrition

import (
	"net/http"

	"macro-snap/internal/api/handlers"
	"macro-snap/internal/core/analysis"
	nutritionCore "macro-snap/internal/core/nutrition"
	"macro-snap/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AnalyzeRequest 圖片營養分析請求
// image: data URI、純 base64 或 URL
type AnalyzeRequest struct {
	Image           string `json:"image"`
	DescriptionHint string `json:"description_hint,omitempty"` // 可選，使用者對圖片的簡述
	CropSquare      bool   `json:"crop_square,omitempty"`      // 網頁上傳時裁切為正方形
	Save            bool   `json:"save,omitempty"`             // 是否寫入紀錄
	UserID          string `json:"user_id,omitempty"`
}

// NormalizeRequest 直接正規化模型輸出
type NormalizeRequest struct {
	RawText string `json:"raw_text"`
	Expect  string `json:"expect,omitempty"` // simple / aggregate / macro_info / text
}

// NormalizeResponse 正規化結果
type NormalizeResponse struct {
	Nutrition nutritionCore.Record `json:"nutrition"`
}

// Handler 營養分析處理器
type Handler struct {
	svc *analysis.Service
}

// NewHandler 創建營養分析處理器
func NewHandler(svc *analysis.Service) *Handler {
	return &Handler{svc: svc}
}

// HandleAnalyze 處理 /nutrition/analyze 圖片營養分析
func (h *Handler) HandleAnalyze(c *gin.Context) {
	requestID := handlers.RequestID(c)

	var req AnalyzeRequest
	if err := handlers.BindJSON(c, &req); err != nil {
		common.LogWarn("請求格式無效", zap.Error(err), zap.String("request_id", requestID))
		handlers.RespondError(c, err)
		return
	}

	common.LogInfo("開始處理營養分析請求",
		zap.String("request_id", requestID),
		zap.String("client_ip", c.ClientIP()),
		zap.String("image_type", handlers.GetImageType(req.Image)),
		zap.Int("image_length", len(req.Image)),
		zap.String("description_hint", req.DescriptionHint),
	)

	result, err := h.svc.AnalyzeImage(c.Request.Context(), analysis.AnalyzeRequest{
		Image:           req.Image,
		DescriptionHint: req.DescriptionHint,
		CropSquare:      req.CropSquare,
		Save:            req.Save,
		UserID:          req.UserID,
		RequestID:       requestID,
	})
	if err != nil {
		common.LogError("營養分析失敗",
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.String("image_type", handlers.GetImageType(req.Image)),
		)
		handlers.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleNormalize 處理 /nutrition/normalize，不呼叫模型
func (h *Handler) HandleNormalize(c *gin.Context) {
	var req NormalizeRequest
	if err := handlers.BindJSON(c, &req); err != nil {
		handlers.RespondError(c, err)
		return
	}

	record := h.svc.NormalizeText(req.RawText, nutritionCore.ParseShape(req.Expect))
	c.JSON(http.StatusOK, NormalizeResponse{Nutrition: record})
}
