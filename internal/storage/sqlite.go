package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"macro-snap/internal/pkg/common"

	_ "modernc.org/sqlite"
)

// timeLayout 固定長度，字串排序即時間排序
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStorage 單機部署使用的 SQLite 儲存
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage 開啟資料庫並建立 schema
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 單一連線避免 SQLITE_BUSY，也讓 :memory: 資料庫在連線間共用
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close 關閉資料庫
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS entries (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL DEFAULT '',
        image_uri TEXT NOT NULL DEFAULT '',
        food_name TEXT NOT NULL,
        calories REAL NOT NULL,
        nutrition TEXT NOT NULL,
        raw_text TEXT NOT NULL DEFAULT '',
        notes TEXT NOT NULL DEFAULT '',
        created_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_entries_user_created ON entries(user_id, created_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveEntry 新增或覆寫紀錄
func (s *SQLiteStorage) SaveEntry(ctx context.Context, entry *Entry) error {
	prepareEntry(entry)

	nutritionJSON, err := json.Marshal(entry.Nutrition)
	if err != nil {
		return fmt.Errorf("failed to marshal nutrition: %w", err)
	}

	query := `
        INSERT OR REPLACE INTO entries (id, user_id, image_uri, food_name, calories, nutrition, raw_text, notes, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = s.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.ImageURI, entry.Nutrition.FoodName, entry.Nutrition.Calories,
		string(nutritionJSON), entry.RawText, entry.Notes, entry.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// GetEntry 取得單筆紀錄
func (s *SQLiteStorage) GetEntry(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, user_id, image_uri, nutrition, raw_text, notes, created_at
        FROM entries WHERE id = ?
    `, id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntries 列出紀錄
func (s *SQLiteStorage) ListEntries(ctx context.Context, userID string, limit int) ([]*Entry, error) {
	query := `
        SELECT id, user_id, image_uri, nutrition, raw_text, notes, created_at
        FROM entries
        WHERE 1=1
    `
	args := []interface{}{}

	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, clampLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}

// DeleteEntry 刪除紀錄
func (s *SQLiteStorage) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n == 0 {
		return common.ErrEntryNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry         Entry
		nutritionJSON string
		createdAtStr  string
	)
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.ImageURI, &nutritionJSON,
		&entry.RawText, &entry.Notes, &createdAtStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	if err := json.Unmarshal([]byte(nutritionJSON), &entry.Nutrition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nutrition: %w", err)
	}

	createdAt, err := time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	entry.CreatedAt = createdAt
	return &entry, nil
}
