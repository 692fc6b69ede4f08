package middleware

import (
	"bytes"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"macro-snap/internal/pkg/common"
)

// deduplicator 記錄最近的請求指紋
type deduplicator struct {
	sync.Mutex
	window    time.Duration
	requests  map[string]time.Time
	lastSweep time.Time
}

// seen 檢查指紋是否在時間窗口內出現過，否則記錄；檢查與寫入在同一把鎖內完成
func (d *deduplicator) seen(fingerprint string, now time.Time) bool {
	d.Lock()
	defer d.Unlock()

	if lastTime, exists := d.requests[fingerprint]; exists && now.Sub(lastTime) <= d.window {
		return true
	}
	d.requests[fingerprint] = now

	// 定期清理過期指紋
	if now.Sub(d.lastSweep) > 10*d.window {
		for k, t := range d.requests {
			if now.Sub(t) > d.window {
				delete(d.requests, k)
			}
		}
		d.lastSweep = now
	}
	return false
}

// Deduplication 請求去重中間件，同一路徑與請求體在 window 內只處理一次
func Deduplication(window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		window = time.Second
	}
	d := &deduplicator{
		window:    window,
		requests:  make(map[string]time.Time),
		lastSweep: time.Now(),
	}

	return func(c *gin.Context) {
		// 只處理 POST 請求
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		// 計算請求體哈希
		bodyHash := ""
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				if common.IsBodyTooLarge(err) {
					c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, common.ErrEntityTooLarge.ToResponse(false))
					return
				}
				common.LogError("Failed to read request body", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusBadRequest, common.ErrInvalidRequest.ToResponse(false))
				return
			}

			bodyHash = common.HashBytes(body)

			// 恢復請求體
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		// 生成請求指紋
		fingerprint := c.Request.Method + ":" + c.Request.URL.Path
		if bodyHash != "" {
			fingerprint += ":" + bodyHash
		}

		if d.seen(fingerprint, time.Now()) {
			common.LogWarn("Duplicate request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, common.ErrTooManyRequests.ToResponse(false))
			return
		}

		c.Next()
	}
}
