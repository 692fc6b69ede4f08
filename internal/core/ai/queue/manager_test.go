package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"macro-snap/internal/core/ai/provider"
	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	content string
	err     error
	block   chan struct{}
	started chan struct{}
}

func (s *stubProvider) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Response{Content: s.content + ":" + req.Prompt}, nil
}

func (s *stubProvider) GetModel() string { return "stub" }

func (s *stubProvider) GetTimeout() time.Duration { return time.Second }

func (s *stubProvider) Close() error { return nil }

func TestSubmitProcessesRequests(t *testing.T) {
	m := NewManager(&config.QueueConfig{Workers: 3, MaxSize: 10}, &stubProvider{content: "ok"})
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := m.Submit(context.Background(), &provider.Request{Prompt: "meal"})
			assert.NoError(t, err)
			assert.Equal(t, "ok:meal", resp.Content)
		}()
	}
	wg.Wait()

	status := m.GetQueueStatus()
	assert.Equal(t, int64(8), status.ProcessedCount)
	assert.Zero(t, status.FailedCount)
	assert.Equal(t, 3, status.Workers)
}

func TestSubmitPropagatesProviderError(t *testing.T) {
	upstream := errors.New("upstream down")
	m := NewManager(&config.QueueConfig{Workers: 1, MaxSize: 1}, &stubProvider{err: upstream})
	defer m.Close()

	_, err := m.Submit(context.Background(), &provider.Request{})
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, int64(1), m.GetQueueStatus().FailedCount)
}

func TestSubmitQueueFull(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 2)
	m := NewManager(&config.QueueConfig{Workers: 1, MaxSize: 1}, &stubProvider{content: "ok", block: block, started: started})
	defer m.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 第一個請求佔住 worker，第二個佔滿隊列
	go func() { _, _ = m.Submit(ctx, &provider.Request{}) }()
	<-started
	go func() { _, _ = m.Submit(ctx, &provider.Request{}) }()
	require.Eventually(t, func() bool { return len(m.queue) == 1 }, time.Second, time.Millisecond)

	_, err := m.Submit(context.Background(), &provider.Request{})
	assert.True(t, errors.Is(err, common.ErrQueueFull))
}

func TestSubmitContextCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	m := NewManager(&config.QueueConfig{Workers: 1, MaxSize: 1}, &stubProvider{block: block})
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Submit(ctx, &provider.Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitAfterClose(t *testing.T) {
	m := NewManager(&config.QueueConfig{Workers: 1, MaxSize: 1}, &stubProvider{content: "ok"})
	m.Close()

	_, err := m.Submit(context.Background(), &provider.Request{})
	assert.True(t, errors.Is(err, common.ErrQueueClosed))
	assert.True(t, m.GetQueueStatus().Closed)
}
