package middleware

import (
	"fmt"
	"net/http"
	"time"

	"macro-snap/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger 請求日誌中間件。quietPaths（例如健康檢查）成功時只記 debug，避免探測請求洗版
func Logger(quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := accessFields(c, status, time.Since(start))

		switch {
		case status >= http.StatusInternalServerError:
			common.LogError("請求失敗", fields...)
		case status >= http.StatusBadRequest:
			common.LogWarn("請求被拒", fields...)
		case quiet[c.Request.URL.Path]:
			common.LogDebug("請求完成", fields...)
		default:
			common.LogInfo("請求完成", fields...)
		}
	}
}

// accessFields 單筆請求的日誌欄位；route 為路由樣板，未匹配時為 "-"
func accessFields(c *gin.Context, status int, latency time.Duration) []zap.Field {
	route := c.FullPath()
	if route == "" {
		route = "-"
	}

	fields := []zap.Field{
		zap.String("request_id", requestid.Get(c)),
		zap.String("method", c.Request.Method),
		zap.String("route", route),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Int("bytes", c.Writer.Size()),
		zap.Duration("latency", latency),
		zap.String("ip", c.ClientIP()),
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
	}
	return fields
}

// Recovery 捕捉 panic 並回傳 500，panic 內容記入 gin 錯誤供 Logger 輸出
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				_ = c.Error(fmt.Errorf("panic: %v", rec))
				common.LogError("Panic recovered",
					zap.Any("panic", rec),
					zap.String("route", c.FullPath()),
					zap.String("request_id", requestid.Get(c)),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, common.ErrInternalError.ToResponse(false))
			}
		}()

		c.Next()
	}
}
