package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	appconfig "macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// objectPutter s3.Client 中用到的部分，測試時替換
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store S3 圖片封存
type Store struct {
	client        objectPutter
	bucket        string
	prefix        string
	publicBaseURL string
}

// New 依設定建立 S3 封存，停用時回傳 nil
func New(ctx context.Context, cfg *appconfig.ImageStoreConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config for S3: %w", err)
	}

	common.LogInfo("S3 圖片封存已啟用",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
	)
	return newStore(s3.NewFromConfig(awsCfg), cfg), nil
}

func newStore(client objectPutter, cfg *appconfig.ImageStoreConfig) *Store {
	return &Store{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

// Key 紀錄對應的物件鍵
func (s *Store) Key(entryID string) string {
	return fmt.Sprintf("%s%s.jpg", s.prefix, entryID)
}

// PutJPEG 上傳處理後的 JPEG，回傳可存取的 URI
func (s *Store) PutJPEG(ctx context.Context, entryID string, data []byte) (string, error) {
	key := s.Key(entryID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	common.LogDebug("圖片已上傳至 S3",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return s.URI(key), nil
}

// URI 有公開網址時回傳 https URL，否則回傳 s3:// URI
func (s *Store) URI(key string) string {
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s", s.publicBaseURL, key)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}
