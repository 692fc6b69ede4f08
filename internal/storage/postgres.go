package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"macro-snap/internal/core/nutrition"
	"macro-snap/internal/pkg/common"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// entryModel entries 資料表
type entryModel struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)"`
	UserID    string           `gorm:"index:idx_entries_user_created,priority:1;not null;default:''"`
	ImageURI  string           `gorm:"not null;default:''"`
	FoodName  string           `gorm:"not null"`
	Calories  float64          `gorm:"not null"`
	Nutrition nutrition.Record `gorm:"type:jsonb;serializer:json;not null"`
	RawText   string           `gorm:"type:text;not null;default:''"`
	Notes     string           `gorm:"type:text;not null;default:''"`
	CreatedAt time.Time        `gorm:"index:idx_entries_user_created,priority:2;not null"`
}

func (entryModel) TableName() string { return "entries" }

func toModel(e *Entry) *entryModel {
	return &entryModel{
		ID:        e.ID,
		UserID:    e.UserID,
		ImageURI:  e.ImageURI,
		FoodName:  e.Nutrition.FoodName,
		Calories:  e.Nutrition.Calories,
		Nutrition: e.Nutrition,
		RawText:   e.RawText,
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
	}
}

func (m *entryModel) toEntry() *Entry {
	return &Entry{
		ID:        m.ID,
		UserID:    m.UserID,
		ImageURI:  m.ImageURI,
		Nutrition: m.Nutrition,
		RawText:   m.RawText,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt,
	}
}

// PostgresStorage 多實例部署使用的 Postgres 儲存
type PostgresStorage struct {
	db *gorm.DB
}

// NewPostgresStorage 連線並自動建立資料表
func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewPostgresStorageWithDB(db)
}

// NewPostgresStorageWithDB 使用既有的 gorm 連線
func NewPostgresStorageWithDB(db *gorm.DB) (*PostgresStorage, error) {
	if err := db.AutoMigrate(&entryModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate entries: %w", err)
	}
	return &PostgresStorage{db: db}, nil
}

// SaveEntry 新增或覆寫紀錄
func (s *PostgresStorage) SaveEntry(ctx context.Context, entry *Entry) error {
	prepareEntry(entry)
	if err := s.db.WithContext(ctx).Save(toModel(entry)).Error; err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

// GetEntry 取得單筆紀錄
func (s *PostgresStorage) GetEntry(ctx context.Context, id string) (*Entry, error) {
	var m entryModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return m.toEntry(), nil
}

// ListEntries 列出紀錄
func (s *PostgresStorage) ListEntries(ctx context.Context, userID string, limit int) ([]*Entry, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(clampLimit(limit))
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	var models []entryModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	entries := make([]*Entry, 0, len(models))
	for i := range models {
		entries = append(entries, models[i].toEntry())
	}
	return entries, nil
}

// DeleteEntry 刪除紀錄
func (s *PostgresStorage) DeleteEntry(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&entryModel{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrEntryNotFound
	}
	return nil
}

// Close 關閉連線池
func (s *PostgresStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
