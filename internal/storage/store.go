package storage

import (
	"context"
	"fmt"
	"time"

	"macro-snap/internal/core/nutrition"
	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Entry 一筆已分析的餐點紀錄
type Entry struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id,omitempty"`
	ImageURI  string           `json:"image_uri,omitempty"`
	Nutrition nutrition.Record `json:"nutrition"`
	RawText   string           `json:"raw_text,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Store 餐點紀錄儲存介面
type Store interface {
	SaveEntry(ctx context.Context, entry *Entry) error
	// GetEntry 找不到時回傳 common.ErrEntryNotFound
	GetEntry(ctx context.Context, id string) (*Entry, error)
	// ListEntries 依建立時間由新到舊；userID 為空時列出全部
	ListEntries(ctx context.Context, userID string, limit int) ([]*Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	Close() error
}

// New 依設定建立儲存，driver 為 none 時回傳 nil
func New(cfg *config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "none", "":
		return nil, nil
	case "sqlite":
		s, err := NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStorage(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// prepareEntry 補齊 ID 與建立時間
func prepareEntry(entry *Entry) {
	if entry.ID == "" {
		entry.ID = common.GenerateUUID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}

// clampLimit 限制單次查詢筆數
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
