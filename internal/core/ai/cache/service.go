package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "macro-snap:ai:"

// Service Redis 緩存服務，多個實例共用快取時使用
type Service struct {
	client *redis.Client
	config *config.CacheConfig
	hits   int64
	misses int64
}

// NewService 創建緩存服務並測試連接
func NewService(cfg *config.CacheConfig) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	common.LogInfo("Redis 快取已連線")
	return NewServiceWithClient(client, cfg), nil
}

// NewServiceWithClient 使用既有的 Redis 客戶端
func NewServiceWithClient(client *redis.Client, cfg *config.CacheConfig) *Service {
	return &Service{
		client: client,
		config: cfg,
	}
}

// Get 獲取緩存
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddInt64(&s.misses, 1)
			common.LogCacheMiss("redis")
			return "", common.ErrCacheMiss
		}
		return "", fmt.Errorf("failed to get cache: %w", err)
	}

	atomic.AddInt64(&s.hits, 1)
	common.LogCacheHit("redis")
	return val, nil
}

// Set 設置緩存
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// GetStats 獲取緩存統計信息
func (s *Service) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"backend": "redis",
		"addr":    s.config.RedisAddr,
		"hits":    atomic.LoadInt64(&s.hits),
		"misses":  atomic.LoadInt64(&s.misses),
	}
}

// Close 關閉 Redis 連接
func (s *Service) Close() error {
	return s.client.Close()
}
