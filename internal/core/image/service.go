package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"
	"time"

	_ "image/gif" // 支援 GIF
	_ "image/png" // 支援 PNG

	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // 支援 WebP
)

// Options 單次處理選項
type Options struct {
	// CropSquare 先裁切成置中的正方形再縮放
	CropSquare bool
}

// Processed 處理後的圖片
type Processed struct {
	DataURI string
	JPEG    []byte
	Width   int
	Height  int
	Format  string
	Hash    string
}

// Service 圖片處理服務
type Service struct {
	maxSizeBytes int64
	maxWidth     int
	maxHeight    int
	quality      int
	httpClient   *resty.Client
}

// NewService 創建新的圖片處理服務
func NewService(cfg *config.ImageConfig) *Service {
	return &Service{
		maxSizeBytes: cfg.MaxSizeBytes,
		maxWidth:     cfg.MaxWidth,
		maxHeight:    cfg.MaxHeight,
		quality:      cfg.JPEGQuality,
		httpClient: resty.New().
			SetTimeout(30 * time.Second).
			SetRetryCount(1),
	}
}

// ProcessImage 解析 data URI、純 base64 或 URL，縮放後重新編碼為 JPEG data URI
func (s *Service) ProcessImage(ctx context.Context, imageData string, opts Options) (*Processed, error) {
	raw, err := s.load(ctx, strings.TrimSpace(imageData))
	if err != nil {
		return nil, err
	}

	// 檢查文件大小
	if s.maxSizeBytes > 0 && int64(len(raw)) > s.maxSizeBytes {
		return nil, common.ErrInvalidImageSize.Wrap(fmt.Errorf("image size %d exceeds maximum limit of %d bytes", len(raw), s.maxSizeBytes))
	}

	// 解碼圖片
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, common.ErrInvalidImageFormat.Wrap(fmt.Errorf("failed to decode image: %w", err))
	}
	if !isSupportedFormat(format) {
		return nil, common.ErrInvalidImageType.Wrap(fmt.Errorf("unsupported image format: %s", format))
	}

	if opts.CropSquare {
		img = CropCenterSquare(img)
	}
	img = Fit(img, s.maxWidth, s.maxHeight)

	// 將圖片轉換為 JPEG 格式
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image as JPEG: %w", err)
	}

	bounds := img.Bounds()
	out := &Processed{
		DataURI: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		JPEG:    buf.Bytes(),
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		Format:  format,
		Hash:    common.HashBytes(buf.Bytes()),
	}

	common.LogDebug("圖片處理完成",
		zap.String("format", format),
		zap.Int("original_bytes", len(raw)),
		zap.Int("jpeg_bytes", len(out.JPEG)),
		zap.Int("width", out.Width),
		zap.Int("height", out.Height),
	)
	return out, nil
}

// load 取得原始圖片位元組
func (s *Service) load(ctx context.Context, imageData string) ([]byte, error) {
	if imageData == "" {
		return nil, common.ErrMissingImage
	}

	// 檢查是否為 URL
	if strings.HasPrefix(imageData, "http://") || strings.HasPrefix(imageData, "https://") {
		return s.download(ctx, imageData)
	}

	payload := imageData
	if strings.HasPrefix(imageData, "data:") {
		parts := strings.SplitN(imageData, ",", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], "data:image/") || !strings.HasSuffix(parts[0], ";base64") {
			return nil, common.ErrInvalidImageFormat.Wrap(fmt.Errorf("invalid data URI header"))
		}
		payload = parts[1]
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// 部分客戶端送出無 padding 的 base64
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, common.ErrInvalidImageFormat.Wrap(fmt.Errorf("failed to decode base64 data: %w", err))
		}
	}
	return decoded, nil
}

// download 下載遠端圖片
func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	resp, err := s.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, common.ErrInvalidImageFormat.Wrap(fmt.Errorf("failed to download image: %w", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, common.ErrInvalidImageFormat.Wrap(fmt.Errorf("failed to download image: status code %d", resp.StatusCode()))
	}
	return resp.Body(), nil
}

// CropCenterSquare 裁切置中的正方形
func CropCenterSquare(img image.Image) image.Image {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if side == b.Dx() && side == b.Dy() {
		return img
	}

	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(x0, y0), draw.Src)
	return dst
}

// Fit 等比例縮小到 maxWidth x maxHeight 之內，不放大
func Fit(img image.Image, maxWidth, maxHeight int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth <= 0 || maxHeight <= 0 || (w <= maxWidth && h <= maxHeight) {
		return img
	}

	scale := float64(maxWidth) / float64(w)
	if hs := float64(maxHeight) / float64(h); hs < scale {
		scale = hs
	}
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// isSupportedFormat 檢查圖片格式是否支援
func isSupportedFormat(format string) bool {
	switch format {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	}
	return false
}
