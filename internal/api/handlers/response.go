package handlers

import (
	"strings"

	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
)

// ConfigKey 路由注入設定時使用的 context key
const ConfigKey = "config"

// RequestID 取得請求 ID，沒有時生成新的
func RequestID(c *gin.Context) string {
	if id := requestid.Get(c); id != "" {
		return id
	}
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	id := common.GenerateUUID()
	c.Header("X-Request-ID", id)
	return id
}

// BindJSON 解析 JSON 請求體，錯誤轉為對應的 CustomError
func BindJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		if common.IsBodyTooLarge(err) {
			return common.ErrEntityTooLarge.Wrap(err)
		}
		return common.ErrInvalidRequest.Wrap(err)
	}
	return nil
}

// RespondError 統一錯誤回應
func RespondError(c *gin.Context, err error) {
	ce := common.AsCustomError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(ce.Status, ce.ToResponse(debugMode(c)))
}

// debugMode debug 模式下錯誤回應附上原始錯誤
func debugMode(c *gin.Context) bool {
	v, ok := c.Get(ConfigKey)
	if !ok {
		return false
	}
	cfg, ok := v.(*config.Config)
	return ok && cfg.App.Debug
}

// GetImageType 獲取圖片類型（用於日誌記錄）
func GetImageType(image string) string {
	if image == "" {
		return "empty"
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return "url"
	}
	if strings.HasPrefix(image, "data:image/") {
		parts := strings.SplitN(image, ";base64,", 2)
		if len(parts) == 2 {
			return "base64_data_uri_" + strings.TrimPrefix(parts[0], "data:image/")
		}
		return "invalid_data_uri"
	}
	if strings.HasPrefix(image, "/9j/") || strings.HasPrefix(image, "iVBORw0KGgo") {
		return "base64"
	}
	return "unknown_format"
}
