package middleware

import (
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"macro-snap/internal/pkg/common"
)

// bodylessMethods 這些方法不帶請求體，不做大小檢查
var bodylessMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodDelete:  true,
}

// BodySizeLimit 限制請求體大小；maxSize <= 0 時不限制。
// 宣告的 Content-Length 超過上限直接回 413，未宣告時由讀取端在超過上限時回報錯誤
func BodySizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxSize <= 0 || bodylessMethods[c.Request.Method] || c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			rejectOversized(c, c.Request.ContentLength, maxSize)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

func rejectOversized(c *gin.Context, size, maxSize int64) {
	common.LogWarn("請求體超過上限",
		zap.Int64("content_length", size),
		zap.Int64("max_size", maxSize),
		zap.String("route", c.FullPath()),
		zap.String("request_id", requestid.Get(c)),
	)
	// 不讀取剩餘請求體，回應後關閉連線
	c.Header("Connection", "close")
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, common.ErrEntityTooLarge.ToResponse(false))
}
