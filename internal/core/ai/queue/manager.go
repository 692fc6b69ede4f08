package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"macro-snap/internal/core/ai/provider"
	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"

	"go.uber.org/zap"
)

// Request 隊列請求
type Request struct {
	Context context.Context
	Request *provider.Request
	Result  chan Result
}

// Result 處理結果
type Result struct {
	Response *provider.Response
	Error    error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	FailedCount    int64 `json:"failed_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
	Closed         bool  `json:"closed"`
}

// Manager 隊列管理器，以固定數量的 worker 呼叫 AI 提供者
type Manager struct {
	config    *config.QueueConfig
	provider  provider.Provider
	queue     chan *Request
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	processed int64
	failed    int64
}

// NewManager 創建新的隊列管理器並啟動 worker
func NewManager(cfg *config.QueueConfig, p provider.Provider) *Manager {
	m := &Manager{
		config:   cfg,
		provider: p,
		queue:    make(chan *Request, cfg.MaxSize),
		done:     make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	common.LogInfo("請求隊列已啟動",
		zap.Int("workers", cfg.Workers),
		zap.Int("max_queue_size", cfg.MaxSize),
	)
	return m
}

// Submit 將請求加入隊列並等待結果；隊列已滿時立即回傳 ErrQueueFull
func (m *Manager) Submit(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	select {
	case <-m.done:
		return nil, common.ErrQueueClosed
	default:
	}

	queueReq := &Request{
		Context: ctx,
		Request: req,
		Result:  make(chan Result, 1),
	}

	select {
	case m.queue <- queueReq:
		common.LogDebug("Request enqueued",
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.config.MaxSize),
			zap.String("request_id", req.RequestID),
		)
	default:
		common.LogWarn("請求隊列已滿",
			zap.Int("queue_length", len(m.queue)),
			zap.String("request_id", req.RequestID),
		)
		return nil, common.ErrQueueFull
	}

	select {
	case res := <-queueReq.Result:
		return res.Response, res.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, common.ErrQueueClosed
	}
}

// worker 從隊列取出請求並呼叫 AI 提供者
func (m *Manager) worker(id int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case req := <-m.queue:
			m.process(id, req)
		}
	}
}

func (m *Manager) process(id int, req *Request) {
	// 呼叫端已放棄等待
	if err := req.Context.Err(); err != nil {
		atomic.AddInt64(&m.failed, 1)
		req.Result <- Result{Error: err}
		return
	}

	start := time.Now()
	resp, err := m.provider.Generate(req.Context, req.Request)
	if err != nil {
		atomic.AddInt64(&m.failed, 1)
	} else {
		atomic.AddInt64(&m.processed, 1)
	}

	common.LogDebug("隊列請求處理完成",
		zap.Int("worker", id),
		zap.Duration("耗時", time.Since(start)),
		zap.Bool("success", err == nil),
		zap.String("request_id", req.Request.RequestID),
	)
	req.Result <- Result{Response: resp, Error: err}
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	closed := false
	select {
	case <-m.done:
		closed = true
	default:
	}

	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: atomic.LoadInt64(&m.processed),
		FailedCount:    atomic.LoadInt64(&m.failed),
		MaxQueueSize:   m.config.MaxSize,
		Workers:        m.config.Workers,
		Closed:         closed,
	}
}

// Close 停止接受請求並等待 worker 結束
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
	common.LogInfo("請求隊列已關閉",
		zap.Int64("processed", atomic.LoadInt64(&m.processed)),
		zap.Int64("failed", atomic.LoadInt64(&m.failed)),
	)
}
