package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"macro-snap/internal/pkg/common"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func TestRateLimiterRefillsFractionally(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.lastTime = now

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	// 兩次 250ms 累積為一個令牌
	now = now.Add(250 * time.Millisecond)
	assert.False(t, rl.Allow())
	now = now.Add(250 * time.Millisecond)
	assert.True(t, rl.Allow())
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(1, time.Minute))
	r.GET("/", okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")
}

func TestDeduplication(t *testing.T) {
	r := gin.New()
	r.Use(Deduplication(time.Minute))
	r.POST("/", okHandler)
	r.GET("/", okHandler)

	post := func(body string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post(`{"a":1}`))
	assert.Equal(t, http.StatusTooManyRequests, post(`{"a":1}`))
	assert.Equal(t, http.StatusOK, post(`{"a":2}`))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestDeduplicatorSweepsExpired(t *testing.T) {
	start := time.Now()
	d := &deduplicator{window: time.Second, requests: make(map[string]time.Time), lastSweep: start}

	assert.False(t, d.seen("a", start))
	assert.True(t, d.seen("a", start.Add(500*time.Millisecond)))
	assert.False(t, d.seen("b", start.Add(11*time.Second)))
	assert.NotContains(t, d.requests, "a")
}

func TestDeduplicatorConcurrentFirstWins(t *testing.T) {
	now := time.Now()
	d := &deduplicator{window: time.Second, requests: make(map[string]time.Time), lastSweep: now}

	const workers = 64
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		start    = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if !d.seen("same", now) {
				accepted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
}

func TestBodySizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.POST("/", okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 32))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("tiny")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBodySizeLimitSkipsBodylessMethods(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.GET("/", okHandler)
	r.DELETE("/", okHandler)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, "/", strings.NewReader(strings.Repeat("x", 32))))
		assert.Equal(t, http.StatusOK, w.Code, method)
	}
}

func TestBodySizeLimitDisabled(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(0))
	r.POST("/", okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 32))))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBodySizeLimitRejectsOversizedStream(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.POST("/", func(c *gin.Context) {
		var v map[string]interface{}
		if err := c.ShouldBindJSON(&v); err != nil {
			if common.IsBodyTooLarge(err) {
				c.Status(http.StatusRequestEntityTooLarge)
				return
			}
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"padding":"xxxxxxxxxxxxxxxx"}`))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestBodySizeLimitWithDeduplication(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(8), Deduplication(time.Second))
	r.POST("/", okHandler)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 32)))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(20 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), "GATEWAY_TIMEOUT")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Logger(), Recovery())
	r.GET("/", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func observeLogs(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	prev := common.Logger
	common.Logger = zap.New(core)
	t.Cleanup(func() { common.Logger = prev })
	return logs
}

func TestLoggerLevels(t *testing.T) {
	logs := observeLogs(t, zapcore.DebugLevel)

	r := gin.New()
	r.Use(Logger("/health"), Recovery())
	r.GET("/health", okHandler)
	r.GET("/items/:id", okHandler)
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	for _, path := range []string{"/health", "/items/42", "/missing", "/panic"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	access := logs.FilterField(zap.String("method", http.MethodGet)).All()
	require.Len(t, access, 4)

	assert.Equal(t, zapcore.DebugLevel, access[0].Level)

	assert.Equal(t, zapcore.InfoLevel, access[1].Level)
	assert.Equal(t, "/items/:id", access[1].ContextMap()["route"])
	assert.Equal(t, "/items/42", access[1].ContextMap()["path"])

	assert.Equal(t, zapcore.WarnLevel, access[2].Level)
	assert.Equal(t, "-", access[2].ContextMap()["route"])

	assert.Equal(t, zapcore.ErrorLevel, access[3].Level)
	assert.Equal(t, int64(http.StatusInternalServerError), access[3].ContextMap()["status"])
	assert.Contains(t, access[3].ContextMap()["errors"], "panic: boom")
}
